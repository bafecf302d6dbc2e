package processors

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
)

// Noise suppressor tuning.
const (
	noiseFloorRise   = 1.02 // per chunk when the signal stays above the floor
	noiseFloorMin    = 8.0  // RMS, about -72 dBFS
	gateOpenRatio    = 2.0  // chunk RMS above floor*ratio passes unattenuated
	gateAttenuation  = 0.25 // gain applied to chunks at or below the floor
	gateReleaseSteps = 4    // chunks to ramp from open back to closed
)

// NoiseSuppressor is a chunk-level soft gate. It tracks the noise floor as
// the running minimum of chunk RMS (falling immediately, rising slowly) and
// attenuates chunks that sit near it. Stateful; one instance per session.
type NoiseSuppressor struct {
	id         string
	floor      float64
	hold       int
	lastLevel  float64
	lastFactor float64
}

// NewNoiseSuppressor creates a suppressor with an empty noise estimate.
func NewNoiseSuppressor(id string) *NoiseSuppressor {
	return &NoiseSuppressor{id: id, lastFactor: 1}
}

// ID returns a unique identifier for this processor
func (ns *NoiseSuppressor) ID() string { return ns.id }

// GetRequiredFormat requires mono S16.
func (ns *NoiseSuppressor) GetRequiredFormat() *audiocore.AudioFormat {
	return &audiocore.AudioFormat{
		SampleRate: audiocore.SampleRate,
		Channels:   1,
		BitDepth:   audiocore.BitDepth,
		Encoding:   audiocore.EncodingS16LE,
	}
}

// GetOutputFormat returns the same format as input
func (ns *NoiseSuppressor) GetOutputFormat(inputFormat audiocore.AudioFormat) audiocore.AudioFormat {
	return inputFormat
}

// NoiseFloor returns the current noise floor estimate as RMS.
func (ns *NoiseSuppressor) NoiseFloor() float64 { return ns.floor }

// Process attenuates the chunk according to its level relative to the noise floor.
func (ns *NoiseSuppressor) Process(_ context.Context, input *audiocore.AudioData) (*audiocore.AudioData, error) {
	if input == nil || input.Format.Encoding != audiocore.EncodingS16LE || input.Format.Channels != 1 {
		return nil, errors.Newf("noise suppressor requires mono pcm_s16le input").
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Build()
	}

	level := rmsS16LE(input.Buffer)
	ns.lastLevel = level
	ns.track(level)

	factor := ns.gateFactor(level)
	ns.lastFactor = factor
	if factor == 1 {
		return input, nil
	}

	output := *input
	output.Buffer = make([]byte, len(input.Buffer))
	copy(output.Buffer, input.Buffer)
	applyGainS16LE(output.Buffer, factor)
	return &output, nil
}

func (ns *NoiseSuppressor) track(level float64) {
	switch {
	case ns.floor == 0:
		ns.floor = math.Max(level, noiseFloorMin)
	case level < ns.floor:
		ns.floor = math.Max(level, noiseFloorMin)
	default:
		ns.floor *= noiseFloorRise
	}
}

// gateFactor opens fully above floor*gateOpenRatio and releases over a few
// chunks so word endings are not clipped.
func (ns *NoiseSuppressor) gateFactor(level float64) float64 {
	if level >= ns.floor*gateOpenRatio {
		ns.hold = gateReleaseSteps
		return 1
	}
	if ns.hold > 0 {
		ns.hold--
		step := float64(ns.hold) / gateReleaseSteps
		return gateAttenuation + (1-gateAttenuation)*step
	}
	return gateAttenuation
}

// rmsS16LE returns the RMS of little-endian 16-bit samples.
func rmsS16LE(p []byte) float64 {
	n := len(p) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(p); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(p[i:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

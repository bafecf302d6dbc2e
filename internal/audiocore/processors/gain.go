// Package processors implements the speech enhancement front-end and the
// audio processors it chains together.
package processors

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// Gain limits accepted by GainProcessor.
const (
	MinGain = 0.0
	MaxGain = 10.0
)

// GainProcessor applies gain adjustment to audio data
type GainProcessor struct {
	id   string
	gain atomic.Value // float64
	log  logger.Logger
}

// NewGainProcessor creates a new gain processor
func NewGainProcessor(id string, initialGain float64, log logger.Logger) (*GainProcessor, error) {
	if err := validateGain(initialGain); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Global().Module("audio")
	}

	gp := &GainProcessor{
		id: id,
		log: log.With(
			logger.String("component", "gain_processor"),
			logger.String("processor_id", id)),
	}
	gp.gain.Store(initialGain)
	return gp, nil
}

func validateGain(gain float64) error {
	if gain < MinGain || gain > MaxGain || math.IsNaN(gain) {
		return errors.Newf("gain must be between %.1f and %.1f", MinGain, MaxGain).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("gain", gain).
			Build()
	}
	return nil
}

// ID returns a unique identifier for this processor
func (gp *GainProcessor) ID() string {
	return gp.id
}

// Process applies the current gain. Unity gain returns the input unchanged.
func (gp *GainProcessor) Process(ctx context.Context, input *audiocore.AudioData) (*audiocore.AudioData, error) {
	if input == nil {
		return nil, errors.Newf("input audio data is nil").
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Build()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	gain := gp.GetGain()
	if gain == 1.0 {
		return input, nil
	}

	output := *input
	output.Buffer = make([]byte, len(input.Buffer))
	copy(output.Buffer, input.Buffer)

	switch input.Format.Encoding {
	case audiocore.EncodingS16LE:
		applyGainS16LE(output.Buffer, gain)
	default:
		gp.log.Error("unsupported audio encoding",
			logger.String("encoding", input.Format.Encoding))
		return nil, errors.Newf("unsupported audio encoding %q", input.Format.Encoding).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Build()
	}

	gp.log.Trace("applied gain",
		logger.Float64("gain", gain),
		logger.Int("buffer_size", len(output.Buffer)))
	return &output, nil
}

// GetRequiredFormat returns nil as gain processor can handle any S16 format
func (gp *GainProcessor) GetRequiredFormat() *audiocore.AudioFormat {
	return nil
}

// GetOutputFormat returns the same format as input
func (gp *GainProcessor) GetOutputFormat(inputFormat audiocore.AudioFormat) audiocore.AudioFormat {
	return inputFormat
}

// SetGain updates the gain value
func (gp *GainProcessor) SetGain(gain float64) error {
	if err := validateGain(gain); err != nil {
		return err
	}
	gp.gain.Store(gain)
	return nil
}

// GetGain returns the current gain value
func (gp *GainProcessor) GetGain() float64 {
	g, _ := gp.gain.Load().(float64)
	return g
}

// applyGainS16LE applies gain to 16-bit signed little-endian PCM samples with clipping
func applyGainS16LE(buffer []byte, gain float64) {
	for i := 0; i+1 < len(buffer); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buffer[i : i+2]))
		amplified := math.Round(float64(sample) * gain)
		if amplified > math.MaxInt16 {
			amplified = math.MaxInt16
		} else if amplified < math.MinInt16 {
			amplified = math.MinInt16
		}
		binary.LittleEndian.PutUint16(buffer[i:i+2], uint16(int16(amplified)))
	}
}

package processors

import (
	"context"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// AGC modes, matching recording.agc_mode.
const (
	AGCOff        = 0
	AGCModerate   = 1
	AGCAggressive = 2
)

type agcProfile struct {
	targetRMS float64
	maxGain   float64
	attack    float64 // smoothing toward lower gain
	release   float64 // smoothing toward higher gain
}

var agcProfiles = map[int]agcProfile{
	AGCModerate:   {targetRMS: 3000, maxGain: 4, attack: 0.5, release: 0.05},
	AGCAggressive: {targetRMS: 6000, maxGain: MaxGain, attack: 0.7, release: 0.15},
}

// AutoGain drives a GainProcessor toward a target chunk RMS.
type AutoGain struct {
	gain    *GainProcessor
	profile agcProfile
}

// NewAutoGain creates an AGC stage for mode 1 or 2.
func NewAutoGain(id string, mode int, log logger.Logger) (*AutoGain, error) {
	profile, ok := agcProfiles[mode]
	if !ok {
		return nil, errors.Newf("unsupported agc mode %d", mode).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("agc_mode", mode).
			Build()
	}
	gp, err := NewGainProcessor(id, 1.0, log)
	if err != nil {
		return nil, err
	}
	return &AutoGain{gain: gp, profile: profile}, nil
}

// ID returns a unique identifier for this processor
func (a *AutoGain) ID() string { return a.gain.ID() }

// Gain returns the gain currently applied.
func (a *AutoGain) Gain() float64 { return a.gain.GetGain() }

// GetRequiredFormat returns nil; any S16 format is accepted
func (a *AutoGain) GetRequiredFormat() *audiocore.AudioFormat { return nil }

// GetOutputFormat returns the same format as input
func (a *AutoGain) GetOutputFormat(inputFormat audiocore.AudioFormat) audiocore.AudioFormat {
	return inputFormat
}

// Process updates the gain from the chunk level, then applies it.
// Chunks at the noise floor leave the gain unchanged.
func (a *AutoGain) Process(ctx context.Context, input *audiocore.AudioData) (*audiocore.AudioData, error) {
	if input == nil {
		return a.gain.Process(ctx, input)
	}
	if level := rmsS16LE(input.Buffer); level > noiseFloorMin {
		current := a.gain.GetGain()
		desired := min(a.profile.targetRMS/level, a.profile.maxGain)
		desired = max(desired, MinGain)
		rate := a.profile.release
		if desired < current {
			rate = a.profile.attack
		}
		next := min(max(current+rate*(desired-current), MinGain), MaxGain)
		if err := a.gain.SetGain(next); err != nil {
			return nil, err
		}
	}
	return a.gain.Process(ctx, input)
}

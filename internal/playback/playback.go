// Package playback plays finished recordings through the sound card.
//
// The recorder owns the device while a session is active. Play checks the
// shared DeviceGuard first and refuses to open the device while it is set.
package playback

import (
	"context"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

const componentPlayback = "playback"

// Clip is a decoded recording ready for output.
type Clip struct {
	Path       string
	SampleRate int
	Channels   int
	PCM        []byte // interleaved S16LE
}

// Frames returns the number of frames in the clip.
func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.PCM) / (2 * c.Channels)
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Output renders a clip and returns when it has finished or ctx is done.
type Output func(ctx context.Context, clip *Clip) error

// Option configures a Player.
type Option func(*Player)

// WithDevice selects the output device by name or ID. Empty selects the
// system default.
func WithDevice(name string) Option {
	return func(p *Player) { p.deviceName = name }
}

// WithOutput replaces the sound card output.
func WithOutput(out Output) Option {
	return func(p *Player) { p.output = out }
}

// Player plays WAV files when no recording holds the device.
type Player struct {
	guard      *audiocore.DeviceGuard
	deviceName string
	output     Output
	log        logger.Logger
}

// NewPlayer creates a player sharing guard with the recorder.
func NewPlayer(guard *audiocore.DeviceGuard, log logger.Logger, opts ...Option) *Player {
	if guard == nil {
		guard = audiocore.NewDeviceGuard()
	}
	if log == nil {
		log = logger.Global().Module(componentPlayback)
	}
	p := &Player{guard: guard, log: log}
	for _, opt := range opts {
		opt(p)
	}
	if p.output == nil {
		p.output = p.playDevice
	}
	return p
}

// Play decodes path and plays it to the end or until ctx is cancelled.
func (p *Player) Play(ctx context.Context, path string) error {
	if err := p.guard.AcquireForPlayback(); err != nil {
		return errors.New(err).
			Component(componentPlayback).
			Context("operation", "play").
			FileContext(path, 0).
			Build()
	}

	clip, err := Load(path)
	if err != nil {
		return err
	}

	p.log.Info("playback started",
		logger.String("path", path),
		logger.Int("channels", clip.Channels),
		logger.Int("sample_rate", clip.SampleRate),
		logger.Duration("duration", clip.Duration()))

	began := time.Now()
	if err := p.output(ctx, clip); err != nil {
		return err
	}
	p.log.Info("playback finished",
		logger.String("path", path),
		logger.Duration("played", time.Since(began)))
	return nil
}

// Load decodes a PCM WAV file into S16LE samples. Deeper bit depths are
// truncated to 16 bits.
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component(componentPlayback).
			Category(errors.CategoryFileIO).
			Context("operation", "open_playback_file").
			FileContext(path, 0).
			Build()
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, invalidClip(path, "not a valid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		return nil, invalidClip(path, "only PCM WAV files can be played")
	}
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, invalidClip(path, "unsupported bit depth")
	}
	if dec.NumChans == 0 || dec.NumChans > 2 {
		return nil, invalidClip(path, "unsupported channel count")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.New(err).
			Component(componentPlayback).
			Category(errors.CategoryFileIO).
			Context("operation", "decode_playback_file").
			FileContext(path, 0).
			Build()
	}

	shift := bitDepth - 16
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v >> shift)
	}
	return &Clip{
		Path:       path,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		PCM:        audiocore.AppendS16LE(make([]byte, 0, 2*len(samples)), samples),
	}, nil
}

func invalidClip(path, reason string) error {
	return errors.Newf("%s", reason).
		Component(componentPlayback).
		Category(errors.CategoryValidation).
		Context("operation", "open_playback_file").
		FileContext(path, 0).
		Build()
}

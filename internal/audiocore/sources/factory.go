// Package sources creates recording sources from configuration.
package sources

import (
	"strings"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/audiocore/sources/file"
	"github.com/boxrec/boxrec/internal/audiocore/sources/malgo"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// Config selects and configures a source.
//
// Kind is "malgo" (alias "soundcard") for the capture device, or
// "file:<path>" to replay a WAV file.
type Config struct {
	Kind        string
	Device      string
	ChunkFrames int
	Realtime    bool
}

// Opener creates a started source. The recorder calls it once per session.
type Opener func() (audiocore.SampleSource, error)

// NewOpener validates cfg and returns an Opener for it.
func NewOpener(cfg Config, log logger.Logger) (Opener, error) {
	kind, path, _ := strings.Cut(cfg.Kind, ":")
	switch kind {
	case "", "malgo", "soundcard":
		return func() (audiocore.SampleSource, error) {
			src := malgo.NewSource("soundcard", malgo.Config{
				DeviceName:  cfg.Device,
				ChunkFrames: cfg.ChunkFrames,
			}, log)
			if err := src.Start(); err != nil {
				return nil, err
			}
			return src, nil
		}, nil

	case "file":
		if path == "" {
			return nil, errors.Newf("file source needs a path, e.g. file:/tmp/in.wav").
				Component(audiocore.ComponentAudioCore).
				Category(errors.CategoryConfiguration).
				Build()
		}
		return func() (audiocore.SampleSource, error) {
			return file.Open("file", file.Config{
				Path:        path,
				ChunkFrames: cfg.ChunkFrames,
				Realtime:    cfg.Realtime,
			}, log)
		}, nil

	default:
		return nil, errors.Newf("unknown source type: %s", kind).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryConfiguration).
			Context("source_type", kind).
			Build()
	}
}

// Create opens a source described by cfg.
func Create(cfg Config, log logger.Logger) (audiocore.SampleSource, error) {
	open, err := NewOpener(cfg, log)
	if err != nil {
		return nil, err
	}
	return open()
}

// ListDevices returns the available capture devices.
func ListDevices() ([]malgo.AudioDeviceInfo, error) {
	return malgo.ListCaptureDevices()
}

package conf

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// RecordingGuard reports whether a recording currently owns the pipeline.
type RecordingGuard interface {
	RecordingActive() bool
}

// SessionConfig is the copy of the settings a recording session runs with.
// Changes to the Store after a session started do not reach it.
type SessionConfig struct {
	Dir             string
	UseFrontEnd     bool
	AGCMode         int
	MixPolicy       audiocore.MixPolicy
	ChunkFrames     int
	FELagChunks     int
	MinFreeMB       int
	MaxReadFailures int
	RefreshInterval time.Duration
}

// Store is the thread-safe holder of the live settings. Setters persist to
// the config file and refuse pipeline changes while recording.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	guard    RecordingGuard
	log      logger.Logger
}

// NewStore wraps settings. guard may be nil when nothing records.
func NewStore(settings *Settings, guard RecordingGuard) *Store {
	s := &Store{guard: guard, log: GetLogger()}
	if settings != nil {
		s.settings = *settings
	}
	ValidateSettings(&s.settings)
	return s
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// MixerPolicy returns the configured channel mix policy.
func (s *Store) MixerPolicy() audiocore.MixPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return audiocore.MixPolicy(s.settings.Recording.RawMode)
}

// FrontEndEnabled reports whether sessions run through the speech front-end.
func (s *Store) FrontEndEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Recording.UseAFE
}

// Snapshot copies the settings a session needs.
func (s *Store) Snapshot() SessionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.settings.Recording
	return SessionConfig{
		Dir:             r.Dir,
		UseFrontEnd:     r.UseAFE,
		AGCMode:         r.AGCMode,
		MixPolicy:       audiocore.MixPolicy(r.RawMode),
		ChunkFrames:     r.ChunkFrames,
		FELagChunks:     r.FELagChunks,
		MinFreeMB:       r.MinFreeMB,
		MaxReadFailures: r.MaxReadFailures,
		RefreshInterval: s.settings.UI.RefreshInterval,
	}
}

// SetMixerPolicy changes recording.raw_mode.
func (s *Store) SetMixerPolicy(p audiocore.MixPolicy) error {
	if !p.Valid() {
		return invalidValue("recording.raw_mode", int(p))
	}
	return s.update("recording.raw_mode", true, func(st *Settings) { st.Recording.RawMode = int(p) })
}

// SetFrontEndEnabled changes recording.use_afe.
func (s *Store) SetFrontEndEnabled(enabled bool) error {
	return s.update("recording.use_afe", true, func(st *Settings) { st.Recording.UseAFE = enabled })
}

// SetAGCMode changes recording.agc_mode.
func (s *Store) SetAGCMode(mode int) error {
	if mode < 0 || mode > 2 {
		return invalidValue("recording.agc_mode", mode)
	}
	return s.update("recording.agc_mode", true, func(st *Settings) { st.Recording.AGCMode = mode })
}

// SetVolume changes ui.volume. It is allowed while recording.
func (s *Store) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return invalidValue("ui.volume", volume)
	}
	return s.update("ui.volume", false, func(st *Settings) { st.UI.Volume = volume })
}

// Set changes one setting from its string form, as typed on the command line.
func (s *Store) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	switch key {
	case "recording.use_afe":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalidValue(key, value)
		}
		return s.SetFrontEndEnabled(b)
	case "recording.agc_mode":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidValue(key, value)
		}
		return s.SetAGCMode(n)
	case "recording.raw_mode":
		p, err := audiocore.ParseMixPolicy(value)
		if err != nil {
			return err
		}
		return s.SetMixerPolicy(p)
	case "recording.dir":
		if value == "" {
			return invalidValue(key, value)
		}
		return s.update(key, true, func(st *Settings) { st.Recording.Dir = value })
	case "recording.chunk_frames", "recording.fe_lag_chunks", "recording.min_free_mb", "recording.max_read_failures":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || (n == 0 && key == "recording.chunk_frames") {
			return invalidValue(key, value)
		}
		return s.update(key, true, func(st *Settings) {
			switch key {
			case "recording.chunk_frames":
				st.Recording.ChunkFrames = n
			case "recording.fe_lag_chunks":
				st.Recording.FELagChunks = n
			case "recording.min_free_mb":
				st.Recording.MinFreeMB = n
			default:
				st.Recording.MaxReadFailures = n
			}
		})
	case "audio.source":
		if value == "" {
			return invalidValue(key, value)
		}
		return s.update(key, true, func(st *Settings) { st.Audio.Source = value })
	case "audio.device":
		return s.update(key, true, func(st *Settings) { st.Audio.Device = value })
	case "ui.volume":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidValue(key, value)
		}
		return s.SetVolume(n)
	case "ui.language":
		if value != "en" && value != "cn" {
			return invalidValue(key, value)
		}
		return s.update(key, false, func(st *Settings) { st.UI.Language = value })
	case "ui.need_hint":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalidValue(key, value)
		}
		return s.update(key, false, func(st *Settings) { st.UI.NeedHint = b })
	case "ui.refresh_interval":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return invalidValue(key, value)
		}
		return s.update(key, false, func(st *Settings) { st.UI.RefreshInterval = d })
	default:
		return errors.Newf("unknown or read-only setting %q", key).
			Component("conf").
			Category(errors.CategoryNotFound).
			Build()
	}
}

// Save writes the current settings to their config file.
func (s *Store) Save() error {
	s.mu.RLock()
	snapshot := s.settings
	s.mu.RUnlock()
	if snapshot.ConfigFile == "" {
		return nil
	}
	return SaveYAMLConfig(snapshot.ConfigFile, &snapshot)
}

// update applies change and persists it. Pipeline settings are refused
// while a recording is active.
func (s *Store) update(key string, pipeline bool, change func(*Settings)) error {
	if pipeline && s.guard != nil && s.guard.RecordingActive() {
		return errors.New(audiocore.ErrInvalidState).
			Component("conf").
			Context("key", key).
			Context("reason", "recording active").
			Build()
	}

	s.mu.Lock()
	change(&s.settings)
	s.mu.Unlock()

	s.log.Info("setting changed", logger.String("key", key))
	if err := s.Save(); err != nil {
		s.log.Error("failed to persist settings", logger.String("key", key), logger.Error(err))
		return err
	}
	return nil
}

func invalidValue(key string, value any) error {
	return errors.Newf("invalid value %v for %s", value, key).
		Component("conf").
		Category(errors.CategoryValidation).
		Context("key", key).
		Build()
}

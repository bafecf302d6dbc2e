package conf

import (
	"fmt"
	"slices"
)

// SupportedLanguages are the UI languages the device ships with.
var SupportedLanguages = []string{"en", "cn"}

// ValidateSettings resets out-of-range values to their defaults and
// returns a description of each reset.
func ValidateSettings(s *Settings) []string {
	var warnings []string
	reset := func(key string, got any, apply func()) {
		apply()
		warnings = append(warnings, fmt.Sprintf("%s=%v out of range", key, got))
	}

	r := &s.Recording
	if r.AGCMode < 0 || r.AGCMode > 2 {
		reset("recording.agc_mode", r.AGCMode, func() { r.AGCMode = DefaultAGCMode })
	}
	if r.RawMode < 0 || r.RawMode > 3 {
		reset("recording.raw_mode", r.RawMode, func() { r.RawMode = DefaultRawMode })
	}
	if r.Dir == "" {
		reset("recording.dir", r.Dir, func() { r.Dir = DefaultDir })
	}
	if r.ChunkFrames <= 0 {
		reset("recording.chunk_frames", r.ChunkFrames, func() { r.ChunkFrames = DefaultChunkFrames })
	}
	if r.FELagChunks < 0 {
		reset("recording.fe_lag_chunks", r.FELagChunks, func() { r.FELagChunks = DefaultFELagChunks })
	}
	if r.MinFreeMB < 0 {
		reset("recording.min_free_mb", r.MinFreeMB, func() { r.MinFreeMB = DefaultMinFreeMB })
	}
	if r.MaxReadFailures < 0 {
		reset("recording.max_read_failures", r.MaxReadFailures, func() { r.MaxReadFailures = DefaultMaxReadFailures })
	}

	u := &s.UI
	if u.Volume < 0 || u.Volume > 100 {
		reset("ui.volume", u.Volume, func() { u.Volume = DefaultVolume })
	}
	if !slices.Contains(SupportedLanguages, u.Language) {
		reset("ui.language", u.Language, func() { u.Language = DefaultLanguage })
	}
	if u.RefreshInterval <= 0 {
		reset("ui.refresh_interval", u.RefreshInterval, func() { u.RefreshInterval = DefaultRefreshInterval })
	}

	if s.Audio.Source == "" {
		reset("audio.source", s.Audio.Source, func() { s.Audio.Source = DefaultSource })
	}
	if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
		reset("mqtt.qos", s.MQTT.QoS, func() { s.MQTT.QoS = 0 })
	}
	return warnings
}

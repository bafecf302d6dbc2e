package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config.yaml"), s.ConfigFile)
	assert.FileExists(t, s.ConfigFile)

	assert.Equal(t, "/sdcard/r", s.Recording.Dir)
	assert.False(t, s.Recording.UseAFE)
	assert.Equal(t, 0, s.Recording.AGCMode)
	assert.Equal(t, 3, s.Recording.RawMode)
	assert.Equal(t, 480, s.Recording.ChunkFrames)
	assert.Equal(t, 3, s.Recording.MaxReadFailures)
	assert.Equal(t, time.Second, s.UI.RefreshInterval)
	assert.Equal(t, 70, s.UI.Volume)
	assert.Equal(t, "en", s.UI.Language)
	assert.True(t, s.UI.NeedHint)
	assert.Equal(t, "malgo", s.Audio.Source)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
	assert.Equal(t, "boxrec", s.MQTT.Topic)
}

func TestLoadReadsYAMLAndResetsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
recording:
  dir: /tmp/rec
  use_afe: true
  agc_mode: 7
  raw_mode: 1
ui:
  volume: 150
  language: de
  refresh_interval: 250ms
`)

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/rec", s.Recording.Dir)
	assert.True(t, s.Recording.UseAFE)
	assert.Equal(t, DefaultAGCMode, s.Recording.AGCMode, "agc_mode 7 is reset")
	assert.Equal(t, 1, s.Recording.RawMode)
	assert.Equal(t, DefaultVolume, s.UI.Volume, "volume above 100 is reset")
	assert.Equal(t, DefaultLanguage, s.UI.Language)
	assert.Equal(t, 250*time.Millisecond, s.UI.RefreshInterval)
	assert.Equal(t, DefaultChunkFrames, s.Recording.ChunkFrames, "unset keys keep defaults")
}

func TestProvisioningFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "recording:\n  raw_mode: 0\n")
	writeFile(t, dir, "config.json", `{
  "recording.use_afe": true,
  "recording.agc_mode": 2,
  "recording.raw_mode": 9,
  "ui.volume": 40,
  "no.such.key": 1
}`)

	s, err := Load(dir)
	require.NoError(t, err)

	assert.True(t, s.Recording.UseAFE)
	assert.Equal(t, 2, s.Recording.AGCMode)
	assert.Equal(t, 0, s.Recording.RawMode, "out-of-range provisioning values are ignored")
	assert.Equal(t, 40, s.UI.Volume)
}

func TestLegacyProvisioningFileName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "debug: false\n")
	writeFile(t, dir, "recorder_config.json", `{"recording.agc_mode": 1}`)

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Recording.AGCMode)
}

func TestBrokenProvisioningFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "recording:\n  agc_mode: 1\n")
	writeFile(t, dir, "config.json", `{not json`)

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Recording.AGCMode)
}

func TestEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "recording:\n  raw_mode: 0\n")
	t.Setenv("BOXREC_RECORDING_RAW_MODE", "2")
	t.Setenv("BOXREC_AUDIO_SOURCE", "file:/tmp/in.wav")

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Recording.RawMode)
	assert.Equal(t, "file:/tmp/in.wav", s.Audio.Source)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)

	s.Recording.AGCMode = 2
	s.UI.RefreshInterval = 3 * time.Second
	require.NoError(t, SaveYAMLConfig(s.ConfigFile, s))

	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Recording.AGCMode)
	assert.Equal(t, 3*time.Second, again.UI.RefreshInterval)
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	s.Recording.AGCMode = -1
	s.Recording.RawMode = 4
	s.UI.Volume = 101
	s.MQTT.QoS = 3

	warnings := ValidateSettings(s)
	assert.Len(t, warnings, 9)
	assert.Equal(t, DefaultAGCMode, s.Recording.AGCMode)
	assert.Equal(t, DefaultRawMode, s.Recording.RawMode)
	assert.Equal(t, DefaultVolume, s.UI.Volume)
	assert.Equal(t, DefaultDir, s.Recording.Dir)
	assert.Equal(t, DefaultChunkFrames, s.Recording.ChunkFrames)
	assert.Equal(t, DefaultRefreshInterval, s.UI.RefreshInterval)
	assert.Equal(t, 0, s.MQTT.QoS)

	assert.Empty(t, ValidateSettings(s), "validated settings stay put")
}

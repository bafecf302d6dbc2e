package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/boxrec/boxrec/internal/logger"
)

// Default values shared by setDefaultConfig and ValidateSettings.
const (
	DefaultDir             = "/sdcard/r"
	DefaultAGCMode         = 0
	DefaultRawMode         = 3 // mono downmix
	DefaultChunkFrames     = 480
	DefaultFELagChunks     = 1
	DefaultMinFreeMB       = 16
	DefaultMaxReadFailures = 3
	DefaultRefreshInterval = time.Second
	DefaultVolume          = 70
	DefaultLanguage        = "en"
	DefaultSource          = "malgo"
)

// setDefaultConfig registers a default for every key so that environment
// overrides and Unmarshal see the full key set.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("recording.dir", DefaultDir)
	v.SetDefault("recording.use_afe", false)
	v.SetDefault("recording.agc_mode", DefaultAGCMode)
	v.SetDefault("recording.raw_mode", DefaultRawMode)
	v.SetDefault("recording.chunk_frames", DefaultChunkFrames)
	v.SetDefault("recording.fe_lag_chunks", DefaultFELagChunks)
	v.SetDefault("recording.min_free_mb", DefaultMinFreeMB)
	v.SetDefault("recording.max_read_failures", DefaultMaxReadFailures)

	v.SetDefault("audio.source", DefaultSource)
	v.SetDefault("audio.device", "default")
	v.SetDefault("audio.realtime", true)

	v.SetDefault("ui.refresh_interval", DefaultRefreshInterval)
	v.SetDefault("ui.volume", DefaultVolume)
	v.SetDefault("ui.language", DefaultLanguage)
	v.SetDefault("ui.need_hint", true)

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", false)

	v.SetDefault("telemetry.prometheus.enabled", false)
	v.SetDefault("telemetry.prometheus.listen", "localhost:9090")
	v.SetDefault("telemetry.sentry.enabled", false)
	v.SetDefault("telemetry.sentry.dsn", "")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "boxrec")
	v.SetDefault("mqtt.client_id", "boxrec")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", true)
}

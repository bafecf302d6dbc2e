// Package conf loads, validates and persists recorder settings.
package conf

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the complete configuration.
type Settings struct {
	Debug     bool                 `yaml:"debug" mapstructure:"debug"`
	Recording RecordingSettings    `yaml:"recording" mapstructure:"recording"`
	Audio     AudioSettings        `yaml:"audio" mapstructure:"audio"`
	UI        UISettings           `yaml:"ui" mapstructure:"ui"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Telemetry TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	MQTT      MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`

	// ConfigFile is the file the settings were read from and are saved to.
	ConfigFile string `yaml:"-" mapstructure:"-"`
}

// RecordingSettings controls the capture pipeline. The use_afe, agc_mode
// and raw_mode keys are also accepted from the provisioning file.
type RecordingSettings struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	UseAFE          bool   `yaml:"use_afe" mapstructure:"use_afe"`
	AGCMode         int    `yaml:"agc_mode" mapstructure:"agc_mode"`
	RawMode         int    `yaml:"raw_mode" mapstructure:"raw_mode"`
	ChunkFrames     int    `yaml:"chunk_frames" mapstructure:"chunk_frames"`
	FELagChunks     int    `yaml:"fe_lag_chunks" mapstructure:"fe_lag_chunks"`
	MinFreeMB       int    `yaml:"min_free_mb" mapstructure:"min_free_mb"`
	MaxReadFailures int    `yaml:"max_read_failures" mapstructure:"max_read_failures"`
}

// AudioSettings selects the capture source.
type AudioSettings struct {
	Source   string `yaml:"source" mapstructure:"source"`
	Device   string `yaml:"device" mapstructure:"device"`
	Realtime bool   `yaml:"realtime" mapstructure:"realtime"`
}

// UISettings are user preferences kept across restarts.
type UISettings struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`
	Volume          int           `yaml:"volume" mapstructure:"volume"` // 0 - 100%
	Language        string        `yaml:"language" mapstructure:"language"`
	NeedHint        bool          `yaml:"need_hint" mapstructure:"need_hint"`
}

// TelemetrySettings configures metrics and error reporting.
type TelemetrySettings struct {
	Prometheus struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Listen  string `yaml:"listen" mapstructure:"listen"`
	} `yaml:"prometheus" mapstructure:"prometheus"`
	Sentry struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		DSN     string `yaml:"dsn" mapstructure:"dsn"`
	} `yaml:"sentry" mapstructure:"sentry"`
}

// MQTTSettings configures the remote status mirror.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	QoS      int    `yaml:"qos" mapstructure:"qos"`
	Retain   bool   `yaml:"retain" mapstructure:"retain"`
}

// Load reads settings in this order: defaults, config.yaml from the first
// of configPaths that has one, the provisioning file next to it, and
// BOXREC_ environment variables. Without configPaths the OS default paths
// are searched. A missing config.yaml is created from the embedded default.
// Out-of-range values are reset with a warning.
func Load(configPaths ...string) (*Settings, error) {
	if len(configPaths) == 0 {
		paths, err := GetDefaultConfigPaths()
		if err != nil {
			return nil, err
		}
		configPaths = paths
	}

	v, err := initViper(configPaths)
	if err != nil {
		return nil, err
	}

	if err := applyProvisioning(v, filepath.Dir(v.ConfigFileUsed())); err != nil {
		GetLogger().Warn("provisioning file ignored", logger.Error(err))
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}
	settings.ConfigFile = v.ConfigFileUsed()

	for _, w := range ValidateSettings(settings) {
		GetLogger().Warn("invalid setting reset to default", logger.String("detail", w))
	}
	return settings, nil
}

func initViper(configPaths []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	v.SetEnvPrefix("BOXREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err == nil {
		return v, nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}
	if err := createDefaultConfig(v, configPaths[0]); err != nil {
		return nil, err
	}
	return v, nil
}

// createDefaultConfig writes the embedded default config into dir and reads it.
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read_embedded_config").
			Build()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_dir").
			Context("path", dir).
			Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			Context("path", configPath).
			Build()
	}
	GetLogger().Info("created default config file", logger.String("path", configPath))

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}
	return nil
}

// SaveYAMLConfig writes settings to configPath atomically. Comments in the
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "marshal_config").
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return saveError(err, "create_config_dir", configPath)
	}
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return saveError(err, "create_temp_config", configPath)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return saveError(err, "write_temp_config", configPath)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return saveError(err, "sync_temp_config", configPath)
	}
	if err := tempFile.Close(); err != nil {
		return saveError(err, "close_temp_config", configPath)
	}
	if err := os.Rename(tempFileName, configPath); err != nil {
		return saveError(err, "replace_config", configPath)
	}
	return nil
}

func saveError(err error, operation, path string) error {
	return errors.New(err).
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("path", path).
		Build()
}

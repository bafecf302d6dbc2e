package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" mapstructure:"default_level"` // default log level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`           // "Local", "UTC", or IANA timezone name
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console"`             // console output configuration
	FileOutput   *FileOutput       `yaml:"file_output" mapstructure:"file_output"`     // file output configuration
	ModuleLevels map[string]string `yaml:"module_levels" mapstructure:"module_levels"` // per-module log levels
}

// ConsoleOutput represents console logging configuration.
// Console output uses human-readable text format without timestamps.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput represents file logging configuration.
// File output uses JSON format with RFC3339 timestamps.
type FileOutput struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Path            string `yaml:"path" mapstructure:"path"`
	MaxSize         int    `yaml:"max_size" mapstructure:"max_size"`                   // MB before rotation
	MaxAge          int    `yaml:"max_age" mapstructure:"max_age"`                     // days to keep rotated logs (0 = no limit)
	MaxRotatedFiles int    `yaml:"max_rotated_files" mapstructure:"max_rotated_files"` // rotated files to keep (0 = no limit)
	Compress        bool   `yaml:"compress" mapstructure:"compress"`
	Level           string `yaml:"level" mapstructure:"level"`
}

// Default values for logging configuration.
const (
	DefaultLogLevel        = "info"
	DefaultLogPath         = "logs/boxrec.log"
	DefaultMaxSize         = 10 // MB, removable media is small
	DefaultMaxAge          = 30
	DefaultMaxRotatedFiles = 5
	DefaultConsoleEnabled  = true
)

// applyConfigDefaults fills nil sections. File output stays disabled unless configured.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}
	if cfg.FileOutput != nil && cfg.FileOutput.Enabled {
		if cfg.FileOutput.Path == "" {
			cfg.FileOutput.Path = DefaultLogPath
		}
		if cfg.FileOutput.MaxSize == 0 {
			cfg.FileOutput.MaxSize = DefaultMaxSize
		}
		if cfg.FileOutput.Level == "" {
			cfg.FileOutput.Level = cfg.DefaultLevel
		}
	}
}

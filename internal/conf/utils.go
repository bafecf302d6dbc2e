package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/boxrec/boxrec/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// When one of them already holds a config.yaml only that one is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategorySystem).
				Context("operation", "get-executable-path").
				Build()
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", "boxrec"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "boxrec"),
			"/etc/boxrec",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

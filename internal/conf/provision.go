package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// Provisioning file names, checked in order. recorder_config.json is the
// name older images used.
var provisioningFiles = []string{"config.json", "recorder_config.json"}

const maxProvisioningSize = 4096

// applyProvisioning overlays the flat dotted keys of the provisioning file
// in dir onto v. A missing file is not an error. Keys outside the known
// set and out-of-range values are skipped with a warning.
func applyProvisioning(v *viper.Viper, dir string) error {
	path, data, err := readProvisioningFile(dir)
	if err != nil || data == nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "parse_provisioning").
			Context("path", path).
			Build()
	}

	log := GetLogger()
	for key, value := range raw {
		if err := applyProvisionedKey(v, key, value); err != nil {
			log.Warn("provisioning key skipped", logger.String("key", key), logger.Error(err))
		}
	}
	log.Info("loaded provisioning file",
		logger.String("path", path),
		logger.Bool("use_afe", v.GetBool("recording.use_afe")),
		logger.Int("agc_mode", v.GetInt("recording.agc_mode")),
		logger.Int("raw_mode", v.GetInt("recording.raw_mode")))
	return nil
}

func readProvisioningFile(dir string) (string, []byte, error) {
	for _, name := range provisioningFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() <= 0 || info.Size() > maxProvisioningSize {
			return path, nil, errors.Newf("provisioning file size %d outside 1..%d bytes", info.Size(), maxProvisioningSize).
				Category(errors.CategoryConfiguration).
				Context("path", path).
				Build()
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return path, nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("operation", "read_provisioning").
				Context("path", path).
				Build()
		}
		return path, data, nil
	}
	return "", nil, nil
}

func applyProvisionedKey(v *viper.Viper, key string, value any) error {
	switch key {
	case "recording.use_afe":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", value)
		}
		v.Set(key, b)
	case "recording.agc_mode":
		return setIntInRange(v, key, value, 0, 2)
	case "recording.raw_mode":
		return setIntInRange(v, key, value, 0, 3)
	default:
		if !v.IsSet(key) {
			return fmt.Errorf("unknown key")
		}
		v.Set(key, value)
	}
	return nil
}

func setIntInRange(v *viper.Viper, key string, value any, lo, hi int) error {
	f, ok := value.(float64)
	if !ok || f != float64(int(f)) {
		return fmt.Errorf("want integer, got %v", value)
	}
	n := int(f)
	if n < lo || n > hi {
		return fmt.Errorf("%d outside %d..%d", n, lo, hi)
	}
	v.Set(key, n)
	return nil
}

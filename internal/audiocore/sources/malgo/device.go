package malgo

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

const componentAudio = "audio"

// AudioDeviceInfo describes a capture or playback device.
type AudioDeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
	Hardware  bool
}

func getBackendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("unsupported operating system").
			Component(componentAudio).
			Category(errors.CategoryAudio).
			Context("os", runtime.GOOS).
			Build()
	}
}

// NewContext initializes a malgo context on the platform backend. Backend
// messages go to log at debug level. The caller must Uninit the context.
func NewContext(log logger.Logger) (*malgo.AllocatedContext, error) {
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(message string) {
		if log != nil {
			log.Debug("malgo", logger.String("message", strings.TrimSpace(message)))
		}
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentAudio).
			Category(errors.CategoryAudio).
			Context("operation", "init_context").
			Context("backend", runtime.GOOS).
			Build()
	}
	return ctx, nil
}

// EnumerateDevices lists the devices of the given type.
func EnumerateDevices(deviceType malgo.DeviceType) ([]AudioDeviceInfo, error) {
	ctx, err := NewContext(nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(deviceType)
	if err != nil {
		return nil, errors.New(err).
			Component(componentAudio).
			Category(errors.CategoryAudio).
			Context("operation", "enumerate_devices").
			Build()
	}

	devices := make([]AudioDeviceInfo, 0, len(infos))
	for i := range infos {
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		id := decodeID(infos[i].ID.String())
		devices = append(devices, AudioDeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        id,
			IsDefault: infos[i].IsDefault == 1,
			Hardware:  isHardwareDevice(id),
		})
	}
	return devices, nil
}

// SelectDevice finds a device by exact name, decoded ID, or name substring.
// An empty name, "default" or "sysdefault" selects the system default, or
// the first device when none is flagged.
func SelectDevice(devices []malgo.DeviceInfo, deviceName string) (*malgo.DeviceInfo, error) {
	if deviceName == "" || deviceName == "default" || deviceName == "sysdefault" {
		for i := range devices {
			if devices[i].IsDefault == 1 {
				return &devices[i], nil
			}
		}
		if len(devices) > 0 {
			return &devices[0], nil
		}
	}

	for i := range devices {
		if devices[i].Name() == deviceName {
			return &devices[i], nil
		}
	}
	for i := range devices {
		if decodeID(devices[i].ID.String()) == deviceName {
			return &devices[i], nil
		}
	}
	for i := range devices {
		if strings.Contains(devices[i].Name(), deviceName) {
			return &devices[i], nil
		}
	}

	return nil, errors.Newf("no matching audio device found").
		Component(componentAudio).
		Category(errors.CategoryNotFound).
		Context("device_name", deviceName).
		Context("available_devices", len(devices)).
		Build()
}

// decodeID turns malgo's hex encoded device ID into its ASCII form, e.g.
// ":1,0" for ALSA hw:1,0. IDs that do not decode are returned unchanged.
func decodeID(hexStr string) string {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return hexStr
	}
	return strings.TrimRight(string(b), "\x00")
}

func isHardwareDevice(decodedID string) bool {
	// ALSA hardware devices look like ":X,Y"
	if runtime.GOOS == "linux" {
		return strings.Contains(decodedID, ":") && strings.Contains(decodedID, ",")
	}
	return true
}

// ListCaptureDevices lists the capture devices of the platform backend.
func ListCaptureDevices() ([]AudioDeviceInfo, error) {
	return EnumerateDevices(malgo.Capture)
}

// ListPlaybackDevices lists the playback devices of the platform backend.
func ListPlaybackDevices() ([]AudioDeviceInfo, error) {
	return EnumerateDevices(malgo.Playback)
}

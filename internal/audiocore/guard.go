package audiocore

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/boxrec/boxrec/internal/errors"
)

// DeviceLockName is the lock file a recording process holds in the system
// temp directory while a session owns the capture device.
const DeviceLockName = "boxrec-device.lock"

// DefaultDeviceLockPath returns the lock file shared by every boxrec process
// on this machine.
func DefaultDeviceLockPath() string {
	return filepath.Join(os.TempDir(), DeviceLockName)
}

// DeviceGuard is the "recording active" flag shared between the recorder
// and the playback path. The recorder sets it; playback checks it before
// touching the device.
//
// A guard created with NewSharedDeviceGuard also mirrors the flag into a
// lock file holding the owner's PID, so a player in another process sees a
// recording in progress. Lock files left by a process that no longer runs
// are ignored.
type DeviceGuard struct {
	active   atomic.Bool
	lockPath string
}

// NewDeviceGuard returns a cleared guard visible to this process only.
func NewDeviceGuard() *DeviceGuard {
	return &DeviceGuard{}
}

// NewSharedDeviceGuard returns a cleared guard backed by the lock file at
// lockPath.
func NewSharedDeviceGuard(lockPath string) *DeviceGuard {
	return &DeviceGuard{lockPath: lockPath}
}

// SetRecording marks the device as owned by a recording session. The
// in-process flag always changes; the returned error only reports a lock
// file that could not be written or removed.
func (g *DeviceGuard) SetRecording(active bool) error {
	g.active.Store(active)
	if g.lockPath == "" {
		return nil
	}
	if active {
		return g.writeLock()
	}
	if err := os.Remove(g.lockPath); err != nil && !os.IsNotExist(err) {
		return g.lockError(err, "remove_device_lock")
	}
	return nil
}

// RecordingActive reports whether a recording currently owns the device,
// in this process or, for a shared guard, in another live process.
func (g *DeviceGuard) RecordingActive() bool {
	if g.active.Load() {
		return true
	}
	_, held := g.lockHolder()
	return held
}

// AcquireForPlayback returns ErrDeviceBusy while a recording is active.
func (g *DeviceGuard) AcquireForPlayback() error {
	if g.active.Load() {
		return ErrDeviceBusy
	}
	if pid, held := g.lockHolder(); held {
		return errors.New(ErrDeviceBusy).
			Component(ComponentAudioCore).
			Context("owner_pid", pid).
			Context("lock_file", g.lockPath).
			Build()
	}
	return nil
}

func (g *DeviceGuard) writeLock() error {
	if err := os.MkdirAll(filepath.Dir(g.lockPath), 0o755); err != nil {
		return g.lockError(err, "create_lock_dir")
	}
	pid := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(g.lockPath, []byte(pid), 0o644); err != nil {
		return g.lockError(err, "write_device_lock")
	}
	return nil
}

// lockHolder returns the PID in the lock file when that process is alive
// and is not this one. This process's own lock only counts through the
// in-process flag.
func (g *DeviceGuard) lockHolder() (int32, bool) {
	if g.lockPath == "" {
		return 0, false
	}
	data, err := os.ReadFile(g.lockPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || pid <= 0 || int(pid) == os.Getpid() {
		return 0, false
	}
	alive, err := process.PidExists(int32(pid))
	if err != nil || !alive {
		return 0, false
	}
	return int32(pid), true
}

func (g *DeviceGuard) lockError(err error, op string) error {
	return errors.New(err).
		Component(ComponentAudioCore).
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("lock_file", g.lockPath).
		Build()
}

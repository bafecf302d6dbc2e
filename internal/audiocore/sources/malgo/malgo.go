// Package malgo captures recording audio from a sound card through miniaudio.
package malgo

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// DefaultBufferChunks is the ring capacity in source chunks.
const DefaultBufferChunks = 16

// Config configures a capture Source.
type Config struct {
	DeviceName   string
	ChunkFrames  int           // 0 selects audiocore.DefaultSourceChunkFrames
	BufferChunks int           // ring capacity in chunks, 0 selects DefaultBufferChunks
	ReadTimeout  time.Duration // 0 selects four chunk durations
}

func (c *Config) applyDefaults() {
	if c.ChunkFrames <= 0 {
		c.ChunkFrames = audiocore.DefaultSourceChunkFrames
	}
	if c.BufferChunks <= 0 {
		c.BufferChunks = DefaultBufferChunks
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 4 * audiocore.ChunkDuration(c.ChunkFrames)
	}
}

// Source is a sound card capture device delivering 16 kHz stereo S16 frames.
type Source struct {
	id     string
	config Config
	log    logger.Logger

	bridge *bridge

	mu         sync.Mutex
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	deviceName string
	formatType malgo.FormatType
	convertBuf []byte
	running    atomic.Bool
}

// NewSource creates an unstarted capture source.
func NewSource(id string, config Config, log logger.Logger) *Source {
	config.applyDefaults()
	if log == nil {
		log = logger.Global().Module(componentAudio)
	}
	return &Source{
		id:     id,
		config: config,
		log:    log.With(logger.String("source_id", id)),
		bridge: newBridge(config.ChunkFrames, config.BufferChunks),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string { return s.id }

// ChunkFrames returns the frames delivered per Read.
func (s *Source) ChunkFrames() int { return s.config.ChunkFrames }

// Format returns the fixed recording format.
func (s *Source) Format() audiocore.AudioFormat { return audiocore.RecordingFormat }

// Overruns returns how many times captured audio was dropped because the
// reader fell behind.
func (s *Source) Overruns() uint64 { return s.bridge.overruns.Load() }

// DeviceName returns the name of the opened device.
func (s *Source) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceName
}

// Start opens the capture device and begins filling the ring.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.New(audiocore.ErrInvalidState).
			Component(componentAudio).
			Context("source_id", s.id).
			Context("operation", "start").
			Build()
	}

	mctx, err := NewContext(s.log)
	if err != nil {
		return err
	}

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		s.releaseContext(mctx)
		return errors.New(err).
			Component(componentAudio).
			Category(errors.CategoryAudio).
			Context("source_id", s.id).
			Context("operation", "enumerate_devices").
			Build()
	}
	info, err := SelectDevice(infos, s.config.DeviceName)
	if err != nil {
		s.releaseContext(mctx)
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = audiocore.Channels
	deviceConfig.Capture.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = audiocore.SampleRate
	deviceConfig.PeriodSizeInFrames = uint32(s.config.ChunkFrames)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onAudioData,
		Stop: s.onDeviceStop,
	})
	if err != nil {
		s.releaseContext(mctx)
		return errors.New(err).
			Component(componentAudio).
			Category(errors.CategoryAudio).
			Context("source_id", s.id).
			Context("device_name", info.Name()).
			Context("operation", "init_device").
			Build()
	}

	s.formatType = device.CaptureFormat()
	if rate := device.SampleRate(); rate != audiocore.SampleRate {
		device.Uninit()
		s.releaseContext(mctx)
		return errors.Newf("device runs at %d Hz, need %d Hz", rate, audiocore.SampleRate).
			Component(componentAudio).
			Category(errors.CategoryAudio).
			Context("source_id", s.id).
			Context("device_name", info.Name()).
			Build()
	}

	s.ctx = mctx
	s.device = device
	s.deviceName = info.Name()
	s.running.Store(true)

	if err := device.Start(); err != nil {
		s.running.Store(false)
		s.teardown()
		return errors.New(err).
			Component(componentAudio).
			Category(errors.CategoryAudio).
			Context("source_id", s.id).
			Context("operation", "start_device").
			Build()
	}

	_, formatName := GetFormatInfo(s.formatType)
	s.log.Info("capture device started",
		logger.String("device", s.deviceName),
		logger.String("format", formatName),
		logger.Int("chunk_frames", s.config.ChunkFrames))
	return nil
}

// Read blocks until one chunk is captured. A device that delivers nothing
// within the read timeout yields ErrHardwareTransient.
func (s *Source) Read(buf []int16, frames int) (int, error) {
	if frames != s.config.ChunkFrames || len(buf) < frames*audiocore.Channels {
		return 0, errors.New(audiocore.ErrInvalidChunkSize).
			Component(componentAudio).
			Context("source_id", s.id).
			Context("frames", frames).
			Context("chunk_frames", s.config.ChunkFrames).
			Build()
	}
	if !s.running.Load() {
		return 0, transient(nil, "read_not_running")
	}
	return s.bridge.read(buf, s.config.ReadTimeout)
}

// Close stops the device and releases the backend context.
func (s *Source) Close() error {
	s.bridge.close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Swap(false) {
		return nil
	}
	s.teardown()
	s.log.Info("capture device closed", logger.Uint64("overruns", s.bridge.overruns.Load()))
	return nil
}

// teardown must be called with s.mu held.
func (s *Source) teardown() {
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		s.releaseContext(s.ctx)
		s.ctx = nil
	}
}

func (s *Source) releaseContext(mctx *malgo.AllocatedContext) {
	if err := mctx.Uninit(); err != nil {
		s.log.Warn("failed to release audio context", logger.Error(err))
	}
	mctx.Free()
}

func (s *Source) onAudioData(_, pSamples []byte, _ uint32) {
	if s.formatType == malgo.FormatS16 {
		s.bridge.push(pSamples)
		return
	}
	converted, err := ConvertToS16(pSamples, s.formatType, s.convertBuf)
	if err != nil {
		return
	}
	s.convertBuf = converted
	s.bridge.push(converted)
}

// onDeviceStop runs when miniaudio stops the device, either on Close or
// because the hardware went away. In the latter case a restart is tried;
// reads time out as transient failures meanwhile.
func (s *Source) onDeviceStop() {
	if !s.running.Load() {
		return
	}
	s.log.Warn("capture device stopped unexpectedly, restarting")
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running.Load() || s.device == nil {
			return
		}
		if err := s.device.Start(); err != nil {
			s.log.Error("failed to restart capture device", logger.Error(err))
		}
	}()
}

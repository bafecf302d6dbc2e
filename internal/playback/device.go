package playback

import (
	"context"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"

	malgosrc "github.com/boxrec/boxrec/internal/audiocore/sources/malgo"
)

// cursor hands out clip bytes to the device callback.
type cursor struct {
	mu   sync.Mutex
	pcm  []byte
	pos  int
	done chan struct{}
	once sync.Once
}

func newCursor(pcm []byte) *cursor {
	return &cursor{pcm: pcm, done: make(chan struct{})}
}

// fill copies the next bytes into out and pads with silence once the clip
// is exhausted.
func (c *cursor) fill(out []byte) {
	c.mu.Lock()
	n := copy(out, c.pcm[c.pos:])
	c.pos += n
	finished := c.pos >= len(c.pcm)
	c.mu.Unlock()

	clear(out[n:])
	if finished {
		c.once.Do(func() { close(c.done) })
	}
}

// playDevice opens a playback device in the clip's own format and blocks
// until the clip has been handed to the device or ctx is done.
func (p *Player) playDevice(ctx context.Context, clip *Clip) error {
	mctx, err := malgosrc.NewContext(p.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := mctx.Uninit(); err != nil {
			p.log.Warn("failed to release audio context", logger.Error(err))
		}
		mctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(clip.Channels)
	deviceConfig.SampleRate = uint32(clip.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if p.deviceName != "" {
		infos, err := mctx.Devices(malgo.Playback)
		if err != nil {
			return deviceError(err, "enumerate_devices")
		}
		info, err := malgosrc.SelectDevice(infos, p.deviceName)
		if err != nil {
			return err
		}
		deviceConfig.Playback.DeviceID = info.ID.Pointer()
	}

	cur := newCursor(clip.PCM)
	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) { cur.fill(out) },
	})
	if err != nil {
		return deviceError(err, "init_device")
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return deviceError(err, "start_device")
	}

	select {
	case <-cur.done:
	case <-ctx.Done():
	}
	if err := device.Stop(); err != nil {
		p.log.Warn("failed to stop playback device", logger.Error(err))
	}
	return ctx.Err()
}

func deviceError(err error, op string) error {
	return errors.New(err).
		Component(componentPlayback).
		Category(errors.CategoryAudio).
		Context("operation", op).
		Build()
}

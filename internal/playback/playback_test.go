package playback

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/audiocore/export"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

func quietLogger() logger.Logger {
	return logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("playback")
}

// writeRecording writes frames stereo frames with L=i, R=-i.
func writeRecording(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "R0001.WAV")
	w := export.NewWAVWriter(quietLogger(), export.WithoutSync())
	require.NoError(t, w.Open(path))

	samples := make([]int16, 0, 2*frames)
	for i := 0; i < frames; i++ {
		samples = append(samples, int16(i), int16(-i))
	}
	require.NoError(t, w.Append(audiocore.AppendS16LE(nil, samples)))
	_, err := w.Finalize()
	require.NoError(t, err)
	return path
}

func TestLoadRecording(t *testing.T) {
	t.Parallel()
	path := writeRecording(t, 1600)

	clip, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, audiocore.SampleRate, clip.SampleRate)
	assert.Equal(t, 2, clip.Channels)
	assert.Equal(t, 1600, clip.Frames())
	assert.Equal(t, 100*time.Millisecond, clip.Duration())

	samples := audiocore.DecodeS16LE(nil, clip.PCM)
	assert.Equal(t, []int16{0, 0, 1, -1, 2, -2}, samples[:6])
	assert.Equal(t, []int16{1599, -1599}, samples[len(samples)-2:])
}

func TestLoadRejectsBadFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a wav file, just text"), 0o644))

	_, err := Load(garbage)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = Load(filepath.Join(dir, "missing.wav"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestPlayRefusedWhileRecording(t *testing.T) {
	t.Parallel()
	path := writeRecording(t, 160)
	guard := audiocore.NewDeviceGuard()
	played := 0
	p := NewPlayer(guard, quietLogger(), WithOutput(func(context.Context, *Clip) error {
		played++
		return nil
	}))

	require.NoError(t, guard.SetRecording(true))
	err := p.Play(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, audiocore.ErrDeviceBusy)
	assert.Zero(t, played)

	require.NoError(t, guard.SetRecording(false))
	require.NoError(t, p.Play(context.Background(), path))
	assert.Equal(t, 1, played)
}

func TestPlayRefusedWhileAnotherProcessRecords(t *testing.T) {
	t.Parallel()
	path := writeRecording(t, 160)
	lock := filepath.Join(t.TempDir(), audiocore.DeviceLockName)
	// the parent of the test binary stands in for a running recorder
	require.NoError(t, os.WriteFile(lock, []byte(strconv.Itoa(os.Getppid())+"\n"), 0o644))

	played := 0
	p := NewPlayer(audiocore.NewSharedDeviceGuard(lock), quietLogger(), WithOutput(func(context.Context, *Clip) error {
		played++
		return nil
	}))

	err := p.Play(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, audiocore.ErrDeviceBusy)
	assert.Zero(t, played)

	require.NoError(t, os.Remove(lock))
	require.NoError(t, p.Play(context.Background(), path))
	assert.Equal(t, 1, played)
}

func TestPlayHandsClipToOutput(t *testing.T) {
	t.Parallel()
	path := writeRecording(t, 320)
	var got *Clip
	p := NewPlayer(nil, quietLogger(), WithOutput(func(_ context.Context, c *Clip) error {
		got = c
		return nil
	}))

	require.NoError(t, p.Play(context.Background(), path))
	require.NotNil(t, got)
	assert.Equal(t, path, got.Path)
	assert.Len(t, got.PCM, 320*audiocore.BytesPerFrame)
}

func TestPlayPropagatesOutputError(t *testing.T) {
	t.Parallel()
	path := writeRecording(t, 160)
	p := NewPlayer(nil, quietLogger(), WithOutput(func(ctx context.Context, _ *Clip) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Play(ctx, path), context.Canceled)
}

func TestCursorPadsWithSilence(t *testing.T) {
	t.Parallel()
	c := newCursor([]byte{1, 2, 3, 4, 5, 6})

	out := make([]byte, 4)
	c.fill(out)
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
	select {
	case <-c.done:
		t.Fatal("done before the clip was exhausted")
	default:
	}

	c.fill(out)
	assert.Equal(t, []byte{5, 6, 0, 0}, out)
	<-c.done

	c.fill(out)
	assert.Equal(t, []byte{0, 0, 0, 0}, out)
}

package sources

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

func TestCreateFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 16000, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           make([]int, 2*480),
		Format:         &audio.Format{NumChannels: 2, SampleRate: 16000},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	log := logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("audio")
	src, err := Create(Config{Kind: "file:" + path}, log)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "file", src.ID())
	assert.Equal(t, 480, src.ChunkFrames())
}

func TestNewOpenerRejectsBadKinds(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"file", "file:", "rtsp:rtsp://cam", "bogus"} {
		_, err := NewOpener(Config{Kind: kind}, nil)
		require.Error(t, err, kind)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration), kind)
	}

	for _, kind := range []string{"", "malgo", "soundcard"} {
		open, err := NewOpener(Config{Kind: kind}, nil)
		require.NoError(t, err, kind)
		assert.NotNil(t, open)
	}
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerWritesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelDebug).Module("recorder")

	log.Info("session started",
		String("file", "R0001.WAV"),
		Int("chunk_frames", 480),
		Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "session started")
	assert.Contains(t, out, "module=recorder")
	assert.Contains(t, out, "file=R0001.WAV")
	assert.Contains(t, out, "chunk_frames=480")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.NotContains(t, out, "time=")
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelWarn).Module("audio")

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")
	log.Log(LogLevelInfo, "explicit hidden")
	log.Log(LogLevelError, "explicit visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "explicit visible")
}

func TestWithAndSubModule(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewWriterLogger(&buf, LogLevelInfo).Module("recorder")
	session := base.With(String("session_id", "abc"))
	capture := session.Module("capture")

	capture.Info("chunk written")
	base.Info("no session")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "module=recorder.capture")
	assert.Contains(t, lines[0], "session_id=abc")
	assert.NotContains(t, lines[1], "session_id")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelInfo).Module("ui")

	log.WithContext(WithTraceID(context.Background(), "trace-1")).Info("intent")
	assert.Contains(t, buf.String(), "trace_id=trace-1")
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Error(nil).Value)
	assert.Equal(t, os.ErrClosed.Error(), Error(os.ErrClosed).Value)
	assert.Equal(t, "error", Error(os.ErrClosed).Key)
}

func TestFileOutputJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "boxrec.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "info"},
	})
	require.NoError(t, err)

	cl.Module("export").Info("finalized", Int64("data_size", 1920))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "finalized", entry["msg"])
	assert.Equal(t, "export", entry["module"])
	assert.InDelta(t, 1920, entry["data_size"], 0)
}

func TestInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)

	_, err = NewCentralLogger(nil)
	assert.Error(t, err)
}

package recordings

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxrec/boxrec/internal/audiocore/export"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/logger"
	recstore "github.com/boxrec/boxrec/internal/recordings"
)

func quietLogger() logger.Logger {
	return logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("recordings")
}

// writeCutOff writes a recording whose header still declares no data, as
// left behind by a power loss.
func writeCutOff(t *testing.T, dir string, index, dataBytes int) string {
	t.Helper()
	path := filepath.Join(dir, recstore.FileName(index))
	header := export.EncodeHeader(0)
	require.NoError(t, os.WriteFile(path, append(header[:], make([]byte, dataBytes)...), 0o644))
	return path
}

func writeFinalized(t *testing.T, dir string, index, dataBytes int) string {
	t.Helper()
	path := filepath.Join(dir, recstore.FileName(index))
	w := export.NewWAVWriter(quietLogger(), export.WithoutSync())
	require.NoError(t, w.Open(path))
	require.NoError(t, w.Append(make([]byte, dataBytes)))
	_, err := w.Finalize()
	require.NoError(t, err)
	return path
}

func TestListMarksCutOffRecordings(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFinalized(t, dir, 1, 64000)
	writeCutOff(t, dir, 2, 3200)

	out := &bytes.Buffer{}
	require.NoError(t, list(out, recstore.New(dir, quietLogger())))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "R0001.WAV")
	assert.Contains(t, string(lines[1]), "ok")
	assert.Contains(t, string(lines[2]), "R0002.WAV")
	assert.Contains(t, string(lines[2]), "needs repair")
}

func TestListEmptyDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := &bytes.Buffer{}
	require.NoError(t, list(out, recstore.New(dir, quietLogger())))
	assert.Equal(t, "no recordings in "+dir+"\n", out.String())
}

func TestRepairOne(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cut := writeCutOff(t, dir, 1, 3200)
	ok := writeFinalized(t, dir, 2, 3200)

	out := &bytes.Buffer{}
	require.NoError(t, repairOne(out, cut))
	assert.Equal(t, "repaired R0001.WAV: 3200 bytes of audio\n", out.String())

	info, err := export.Inspect(cut)
	require.NoError(t, err)
	assert.False(t, info.NeedsRepair())
	assert.Equal(t, int64(3200), info.DeclaredData)

	out.Reset()
	require.NoError(t, repairOne(out, ok))
	assert.Empty(t, out.String(), "finalized recordings are left alone")
}

func TestRepairAllCommand(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeCutOff(t, dir, 1, 320)
	writeCutOff(t, dir, 2, 640)

	settings := &conf.Settings{}
	cmd := Command(settings)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"repair", "--all", "--dir", dir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "repaired R0001.WAV: 320 bytes")
	assert.Contains(t, out.String(), "repaired R0002.WAV: 640 bytes")
}

func TestDeleteAllNeedsConfirmation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFinalized(t, dir, 1, 320)

	cmd := Command(&conf.Settings{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"delete-all", "--dir", dir})
	require.Error(t, cmd.Execute())
	assert.FileExists(t, path)

	cmd = Command(&conf.Settings{})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"delete-all", "--yes", "--dir", dir})
	require.NoError(t, cmd.Execute())
	assert.NoFileExists(t, path)
	assert.Equal(t, "deleted 1 recordings\n", out.String())
}

package export

import (
	"io"
	"os"
	"path/filepath"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

const componentExport = "export"

// file is the subset of *os.File used by WAVWriter.
type file interface {
	io.Writer
	io.Seeker
	Sync() error
	Stat() (os.FileInfo, error)
	Close() error
}

type openFunc func(name string, flag int, perm os.FileMode) (file, error)

func osOpen(name string, flag int, perm os.FileMode) (file, error) {
	return os.OpenFile(name, flag, perm)
}

// WAVWriter streams PCM into a WAV file: placeholder header on Open,
// append-only writes, and a single header patch on Finalize.
//
// Every Append is followed by an fsync. The medium is removable and the
// process may lose power at any moment, so durability wins over throughput.
// Not safe for concurrent use.
type WAVWriter struct {
	path      string
	f         file
	written   int64
	total     int64
	finalized bool
	noSync    bool
	open      openFunc
	log       logger.Logger
}

// WriterOption configures a WAVWriter.
type WriterOption func(*WAVWriter)

// WithoutSync disables the per-append fsync. Only for benchmarks and replay.
func WithoutSync() WriterOption {
	return func(w *WAVWriter) { w.noSync = true }
}

// NewWAVWriter creates an unopened writer. A nil log uses the global logger.
func NewWAVWriter(log logger.Logger, opts ...WriterOption) *WAVWriter {
	if log == nil {
		log = logger.Global().Module(componentExport)
	}
	w := &WAVWriter{open: osOpen, log: log}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the path passed to Open.
func (w *WAVWriter) Path() string { return w.path }

// BytesWritten returns the PCM bytes accepted by Append so far.
func (w *WAVWriter) BytesWritten() int64 { return w.written }

// Open creates path (and its directory) exclusively and writes the
// placeholder header declaring zero bytes of data. An existing file is
// never overwritten.
func (w *WAVWriter) Open(path string) error {
	if w.f != nil || w.finalized {
		return errors.New(audiocore.ErrInvalidState).
			Component(componentExport).
			Context("operation", "wav_open").
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ioFailure(err, "wav_mkdir", path)
	}
	f, err := w.open(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return ioFailure(err, "wav_open", path)
	}

	header := EncodeHeader(0)
	if _, err := f.Write(header[:]); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return ioFailure(err, "wav_write_header", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return ioFailure(err, "wav_sync", path)
	}

	w.path = path
	w.f = f
	w.log.Debug("recording file opened", logger.String("path", path))
	return nil
}

// Append writes p after the data already in the file and syncs it to the medium.
func (w *WAVWriter) Append(p []byte) error {
	if w.f == nil {
		return errors.New(audiocore.ErrInvalidState).
			Component(componentExport).
			Context("operation", "wav_append").
			Build()
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	if err != nil {
		return ioFailure(err, "wav_append", w.path)
	}
	if w.noSync {
		return nil
	}
	if err := w.f.Sync(); err != nil {
		return ioFailure(err, "wav_sync", w.path)
	}
	return nil
}

// Finalize patches the header with the data size derived from the file
// length, clamped at zero, then closes the file. It is the only backwards
// seek the writer performs. Calling it again returns the first result
// without touching the file.
func (w *WAVWriter) Finalize() (int64, error) {
	if w.finalized {
		return w.total, nil
	}
	if w.f == nil {
		return 0, errors.New(audiocore.ErrInvalidState).
			Component(componentExport).
			Context("operation", "wav_finalize").
			Build()
	}

	f := w.f
	w.f = nil
	w.finalized = true

	length := HeaderSize + w.written
	if info, err := f.Stat(); err == nil {
		length = info.Size()
	} else {
		w.log.Warn("stat failed, deriving size from bytes written",
			logger.String("path", w.path),
			logger.Error(err))
	}
	dataSize := dataSizeFor(length)
	w.total = int64(dataSize)

	var errs []error
	header := EncodeHeader(dataSize)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		errs = append(errs, err)
	} else if _, err := f.Write(header[:]); err != nil {
		errs = append(errs, err)
	}
	if err := f.Sync(); err != nil {
		errs = append(errs, err)
	}
	if err := f.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return w.total, ioFailure(errors.Join(errs...), "wav_finalize", w.path)
	}

	w.log.Debug("recording file finalized",
		logger.String("path", w.path),
		logger.Int64("data_size", w.total))
	return w.total, nil
}

func ioFailure(err error, operation, path string) error {
	return errors.New(err).
		Component(componentExport).
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		FileContext(path, 0).
		Build()
}

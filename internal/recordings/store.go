package recordings

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/boxrec/boxrec/internal/audiocore"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

const componentRecordings = "recordings"

// DefaultDir is where the device writes recordings.
const DefaultDir = "/sdcard/r"

const probeName = ".probe"

// Recording is one file in the recordings directory.
type Recording struct {
	Name    string
	Path    string
	Index   int
	Size    int64
	ModTime time.Time
}

// Store is the recordings directory.
type Store struct {
	dir string
	log logger.Logger
}

// New returns a Store for dir. The directory is created on first use.
func New(dir string, log logger.Logger) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	if log == nil {
		log = logger.Global().Module(componentRecordings)
	}
	return &Store{dir: dir, log: log}
}

// Dir returns the directory path.
func (s *Store) Dir() string { return s.dir }

// NextPath returns the path for the next recording: one past the highest
// existing index. Gaps left by deleted files are not reused.
func (s *Store) NextPath() (string, error) {
	entries, err := s.readDir()
	if err != nil {
		return "", err
	}
	highest := 0
	for _, e := range entries {
		if idx, ok := ParseIndex(e.Name()); ok && idx > highest {
			highest = idx
		}
	}
	next := highest + 1
	if next > MaxIndex {
		return "", errors.New(audiocore.ErrIOFailure).
			Component(componentRecordings).
			Category(errors.CategoryFileIO).
			Context("operation", "next_file_name").
			Context("reason", "recording index exhausted").
			Context("highest_index", highest).
			Build()
	}
	return filepath.Join(s.dir, FileName(next)), nil
}

// List returns the recordings ordered by index.
func (s *Store) List() ([]Recording, error) {
	entries, err := s.readDir()
	if err != nil {
		return nil, err
	}
	var out []Recording
	for _, e := range entries {
		idx, ok := ParseIndex(e.Name())
		if !ok || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Recording{
			Name:    e.Name(),
			Path:    filepath.Join(s.dir, e.Name()),
			Index:   idx,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b Recording) int { return a.Index - b.Index })
	return out, nil
}

// DeleteAll removes every regular file in the directory and returns how
// many were removed. Subdirectories are left alone.
func (s *Store) DeleteAll() (int, error) {
	entries, err := s.readDir()
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	s.log.Info("recordings deleted", logger.Int("count", removed))
	if len(errs) > 0 {
		return removed, errors.New(errors.Join(errs...)).
			Component(componentRecordings).
			Category(errors.CategoryFileIO).
			Context("operation", "delete_all").
			Context("failed", len(errs)).
			Build()
	}
	return removed, nil
}

// Probe checks that the medium is mounted and writable by creating,
// syncing and removing a small file.
func (s *Store) Probe() error {
	start := time.Now()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return s.ioFailure(err, "probe_mkdir")
	}
	path := filepath.Join(s.dir, probeName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return s.ioFailure(err, "probe_create")
	}
	_, werr := f.Write([]byte("boxrec"))
	serr := f.Sync()
	cerr := f.Close()
	rerr := os.Remove(path)
	if err := errors.Join(werr, serr, cerr, rerr); err != nil {
		return s.ioFailure(err, "probe_write")
	}
	s.log.Debug("storage probe passed", logger.Duration("took", time.Since(start)))
	return nil
}

func (s *Store) readDir() ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, s.ioFailure(err, "read_dir")
	}
	return entries, nil
}

func (s *Store) ioFailure(err error, operation string) error {
	return errors.New(err).
		Component(componentRecordings).
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("dir", s.dir).
		Build()
}

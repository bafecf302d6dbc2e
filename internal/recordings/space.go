package recordings

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// Usage is the space on the filesystem holding the recordings directory.
type Usage struct {
	TotalBytes  uint64
	FreeBytes   uint64
	UsedPercent float64
}

// Usage reports filesystem usage for the recordings directory, or its
// nearest existing parent when it has not been created yet.
func (s *Store) Usage() (Usage, error) {
	path := existingParent(s.dir)
	stat, err := disk.Usage(path)
	if err != nil {
		return Usage{}, errors.New(err).
			Component(componentRecordings).
			Category(errors.CategoryFileIO).
			Context("operation", "disk_usage").
			Context("path", path).
			Build()
	}
	return Usage{TotalBytes: stat.Total, FreeBytes: stat.Free, UsedPercent: stat.UsedPercent}, nil
}

// CheckFreeSpace fails when fewer than minMB megabytes are free. A
// non-positive minMB disables the check.
func (s *Store) CheckFreeSpace(minMB int) error {
	if minMB <= 0 {
		return nil
	}
	u, err := s.Usage()
	if err != nil {
		return err
	}
	need := uint64(minMB) << 20
	if u.FreeBytes < need {
		return errors.Newf("insufficient free space for recording").
			Component(componentRecordings).
			Category(errors.CategoryFileIO).
			Context("reason", "insufficient free space").
			Context("free_mb", u.FreeBytes>>20).
			Context("min_free_mb", minMB).
			Context("dir", s.dir).
			Build()
	}
	s.log.Debug("free space check passed", logger.Uint64("free_mb", u.FreeBytes>>20))
	return nil
}

func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

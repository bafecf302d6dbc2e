// Package recordings manages the directory recordings are written to:
// file naming, listing, bulk deletion and storage checks.
package recordings

import (
	"fmt"
	"strconv"
	"strings"
)

// Recording files use 8.3 compatible names, R0001.WAV to R9999.WAV.
const (
	namePrefix = "R"
	nameExt    = ".WAV"
	indexWidth = 4

	// MaxIndex is the highest index a file name can carry.
	MaxIndex = 9999
)

// FileName returns the file name for index.
func FileName(index int) string {
	return fmt.Sprintf("%s%0*d%s", namePrefix, indexWidth, index, nameExt)
}

// ParseIndex extracts the index from a recording file name. Matching is
// case-insensitive; names that do not follow the pattern report false.
func ParseIndex(name string) (int, bool) {
	if len(name) != len(namePrefix)+indexWidth+len(nameExt) {
		return 0, false
	}
	if !strings.EqualFold(name[:len(namePrefix)], namePrefix) ||
		!strings.EqualFold(name[len(namePrefix)+indexWidth:], nameExt) {
		return 0, false
	}
	digits := name[len(namePrefix) : len(namePrefix)+indexWidth]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

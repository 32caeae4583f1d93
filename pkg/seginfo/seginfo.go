// Package seginfo provides utilities for naming, discovering, and parsing the
// append-only log segments that back the store.
//
// Filename Format: <id>.log
//
// Where id is the file's decimal, unpadded uint64 sequence number. The first
// segment created in an empty directory is 0.log; every later segment
// (whether created by normal rotation or by compaction) takes the next
// unused id. There is no prefix and no timestamp component — the id alone
// both names the file and orders it relative to every other segment.
//
// Example filenames:
//
//	0.log
//	1.log
//	42.log
package seginfo

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/iamNilotpal/ignite/pkg/filesys"
)

// Extension is the fixed suffix every segment file carries.
const Extension = ".log"

// FileName formats the on-disk name for the segment with the given id.
func FileName(id uint64) string {
	return strconv.FormatUint(id, 10) + Extension
}

// ParseID extracts the sequence id from a segment filename or path. It
// accepts either a bare filename ("12.log") or a full path
// ("/data/12.log").
func ParseID(path string) (uint64, error) {
	_, filename := filepath.Split(path)

	if !strings.HasSuffix(filename, Extension) {
		return 0, fmt.Errorf("filename %s does not have the %s extension", filename, Extension)
	}

	idStr := strings.TrimSuffix(filename, Extension)
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse segment id %q: %w", idStr, err)
	}

	return id, nil
}

// DiscoverSegments scans dataDir for segment files and returns their ids
// sorted ascending. Unlike the zero-padded scheme this package used to
// implement, ids here are not fixed-width, so sorting by filename text would
// be wrong (2.log would sort after 10.log); every id is parsed and sorted
// numerically instead.
func DiscoverSegments(dataDir string) ([]uint64, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir must be non-empty")
	}

	searchPattern := filepath.Join(dataDir, "*"+Extension)
	matches, err := filesys.ReadDir(searchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment directory with pattern %s: %w", searchPattern, err)
	}

	ids := make([]uint64, 0, len(matches))
	for _, match := range matches {
		id, err := ParseID(match)
		if err != nil {
			// A file that matched *.log but doesn't parse as a plain
			// decimal id doesn't belong to this store; skip it rather
			// than fail the whole scan.
			continue
		}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids, nil
}

// NextID returns the id the next new segment should use: one past the
// highest id currently on disk, or 0 when the directory holds no segments
// yet. This mirrors the bootstrap rule of the reference key/value store this
// layout was ported from, where ids start at zero rather than one.
func NextID(dataDir string) (uint64, error) {
	ids, err := DiscoverSegments(dataDir)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[len(ids)-1] + 1, nil
}

// GetFileInfo safely retrieves file system metadata for a given path.
func GetFileInfo(filePath string) (os.FileInfo, error) {
	file, err := os.OpenFile(filePath, os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info for %s: %w", filePath, err)
	}

	return stat, nil
}

package index

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// RecordPointer is the in-memory directory entry for one live key: just
// enough metadata to seek directly to the record on disk without scanning.
//
// Its own mutex lets the compactor "swing" FileID/Offset/EntrySize to point
// at a freshly merged segment while a concurrent Get is mid-flight against
// the old location — the read either completes against the old segment
// (still open, still valid) or observes the new location, never a torn mix
// of the two.
type RecordPointer struct {
	mu sync.RWMutex

	// FileID identifies which segment file holds this record. Unlike a
	// pure in-memory cache, compaction changes this field in place when it
	// rewrites the record into a new segment, so FileID must be wide
	// enough to address any segment the store will ever create over its
	// lifetime — hence uint64 rather than a narrower id.
	FileID uint64

	// Offset is the byte position within FileID's segment where the
	// record's header begins.
	Offset int64

	// EntrySize is the total on-disk size of the record (header + key +
	// value), letting a read fetch the whole entry in one positional I/O.
	EntrySize uint32

	// ValueSize is the byte length of the value alone, letting a caller
	// slice the value out of a fetched entry without re-parsing the key.
	ValueSize uint32

	// Timestamp is the record's write time in Unix nanoseconds, copied from
	// the record header when the entry is set.
	Timestamp int64

	// Key duplicates the map key so a pointer on its own still identifies
	// the record it names.
	Key string
}

// location returns a stable snapshot of where the record currently lives,
// safe to use for an I/O call performed outside the index's own lock.
func (rp *RecordPointer) location() (fileID uint64, offset int64, entrySize uint32, valueSize uint32, ts int64) {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.FileID, rp.Offset, rp.EntrySize, rp.ValueSize, rp.Timestamp
}

// relocate atomically swings the pointer to a new segment location. Called
// by the compactor once a record has been rewritten into a merged segment.
func (rp *RecordPointer) relocate(fileID uint64, offset int64, entrySize uint32, valueSize uint32) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.FileID = fileID
	rp.Offset = offset
	rp.EntrySize = entrySize
	rp.ValueSize = valueSize
}

// Index is the in-memory hash table mapping every live key to the location
// of its most recent write. It is rebuilt from scratch by replaying segment
// files on open, and kept current by every subsequent Set/Delete.
type Index struct {
	dataDir       string
	log           *zap.SugaredLogger
	recordPointer map[string]*RecordPointer
	mu            sync.RWMutex
	closed        atomic.Bool
}

// Config encapsulates the configuration parameters required to initialize
// an Index.
type Config struct {
	DataDir string
	Logger  *zap.SugaredLogger
}

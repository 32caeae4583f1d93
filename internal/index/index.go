// Package index maintains the in-memory key directory described by the
// Bitcask design: a hash table from key to the segment, offset, and size of
// that key's most recent write. Every read resolves through this table
// before touching disk; every write and delete updates it after the
// corresponding record lands on disk.
package index

import (
	"context"
	stdErrors "errors"

	"github.com/iamNilotpal/ignite/pkg/errors"
)

var (
	ErrIndexClosed  = stdErrors.New("operation failed: cannot access closed index")
	ErrKeyNotFound  = stdErrors.New("key not found")
)

// New creates an empty Index ready for recovery to populate.
func New(ctx context.Context, config *Config) (*Index, error) {
	if config == nil || config.DataDir == "" || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "index configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	return &Index{
		log:           config.Logger,
		dataDir:       config.DataDir,
		recordPointer: make(map[string]*RecordPointer, 2048),
	}, nil
}

// Location is a snapshot of where a key's record currently lives, returned
// by Get so callers can perform the disk read outside the index's lock.
type Location struct {
	FileID    uint64
	Offset    int64
	EntrySize uint32
	ValueSize uint32
	Timestamp int64
}

// Get resolves key to its current on-disk location. It reports
// ErrKeyNotFound (wrapped) when the key has no live entry.
func (idx *Index) Get(key string) (Location, error) {
	idx.mu.RLock()
	rp, ok := idx.recordPointer[key]
	idx.mu.RUnlock()

	if !ok {
		return Location{}, errors.NewIndexError(ErrKeyNotFound, errors.ErrorCodeIndexKeyNotFound, "key not found").
			WithKey(key)
	}

	fileID, offset, entrySize, valueSize, ts := rp.location()
	return Location{FileID: fileID, Offset: offset, EntrySize: entrySize, ValueSize: valueSize, Timestamp: ts}, nil
}

// Set records (or overwrites) the location of key's newest write. It is
// used both by live writes and by recovery replay; in both cases the
// caller is expected to present records to Set in increasing timestamp
// order, so Set does not itself compare timestamps against any existing
// entry.
func (idx *Index) Set(key string, loc Location) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rp, ok := idx.recordPointer[key]
	if !ok {
		idx.recordPointer[key] = &RecordPointer{
			Key: key, FileID: loc.FileID, Offset: loc.Offset,
			EntrySize: loc.EntrySize, ValueSize: loc.ValueSize, Timestamp: loc.Timestamp,
		}
		return
	}

	rp.mu.Lock()
	rp.FileID, rp.Offset, rp.EntrySize, rp.ValueSize, rp.Timestamp = loc.FileID, loc.Offset, loc.EntrySize, loc.ValueSize, loc.Timestamp
	rp.mu.Unlock()
}

// Delete removes key's entry entirely — used once a tombstone has been
// durably appended, at which point there is no on-disk location left worth
// keeping around. It reports whether the key previously existed.
func (idx *Index) Delete(key string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.recordPointer[key]; !ok {
		return false
	}
	delete(idx.recordPointer, key)
	return true
}

// Relocate swings an existing key's pointer to a new segment location
// without touching the rest of the map. The compactor calls this once it
// has rewritten a record into a merged segment, letting concurrent reads
// against the old location finish undisturbed while later reads see the
// new one.
func (idx *Index) Relocate(key string, fileID uint64, offset int64, entrySize, valueSize uint32) bool {
	idx.mu.RLock()
	rp, ok := idx.recordPointer[key]
	idx.mu.RUnlock()

	if !ok {
		return false
	}
	rp.relocate(fileID, offset, entrySize, valueSize)
	return true
}

// Entry pairs a key with its current on-disk location.
type Entry struct {
	Key string
	Location
}

// Entries returns a point-in-time copy of every live key and its location,
// suitable for a compaction pass to iterate over without holding the
// index's lock for the duration of the merge.
func (idx *Index) Entries() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Entry, 0, len(idx.recordPointer))
	for key, rp := range idx.recordPointer {
		fileID, offset, entrySize, valueSize, ts := rp.location()
		out = append(out, Entry{
			Key:      key,
			Location: Location{FileID: fileID, Offset: offset, EntrySize: entrySize, ValueSize: valueSize, Timestamp: ts},
		})
	}
	return out
}

// Keys returns every key currently tracked by the index.
func (idx *Index) Keys() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(idx.recordPointer))
	for k := range idx.recordPointer {
		out = append(out, k)
	}
	return out
}

// Len reports how many live keys the index currently tracks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.recordPointer)
}

// Close releases the index's memory. It is an error to use the index
// afterward.
func (idx *Index) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return ErrIndexClosed
	}

	idx.log.Infow("closing index")

	idx.mu.Lock()
	defer idx.mu.Unlock()

	clear(idx.recordPointer)
	idx.recordPointer = nil

	idx.log.Infow("index closed")
	return nil
}

// Package engine provides the core database engine implementation for the
// store.
//
// The engine serves as the central coordinator and entry point for all
// database operations. It orchestrates the interaction between three main
// subsystems:
//   - Index: the in-memory key directory used for O(1) lookups
//   - Storage: the append-only segment files data is durably written to
//   - Compaction: the background process that reclaims space from
//     overwritten and deleted keys
//
// The engine enforces the single-writer discipline the on-disk format
// depends on: Set, Remove, and Compact all serialize through writeMu, so at
// most one append is ever in flight against the active segment at a time.
// Reads never take writeMu and can proceed concurrently with a write or a
// compaction pass.
package engine

import (
	"context"
	stdErrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamNilotpal/ignite/internal/compaction"
	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/internal/record"
	"github.com/iamNilotpal/ignite/internal/recovery"
	"github.com/iamNilotpal/ignite/internal/storage"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/options"
	"go.uber.org/zap"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
	ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")

	// ErrKeyNotFound is the public sentinel returned by Remove when the key
	// has no live entry. Get instead reports a miss through its bool
	// return, since a missing key on read is an ordinary outcome rather
	// than a failure.
	ErrKeyNotFound = stdErrors.New("key not found")

	// ErrEmptyKey rejects the one input shape the wire format cannot
	// represent usefully: a zero-length key would round-trip fine, but
	// every front end that talks to the engine treats an empty key as a
	// usage error, so the engine rejects it once here instead of in every
	// caller.
	ErrEmptyKey = stdErrors.New("key must not be empty")
)

// Engine coordinates the index, storage, and compaction subsystems and
// presents the store's public read/write/compact/close contract.
type Engine struct {
	opts    *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool
	writeMu sync.Mutex // serializes every append against the active segment.

	index      *index.Index
	storage    *storage.Storage
	compaction *compaction.Compaction

	stopBackground chan struct{}
	backgroundDone chan struct{}
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New opens the store rooted at Options.DataDir: it discovers and opens
// every existing segment, replays them to rebuild the index, and — if
// Options.CompactInterval is non-zero — starts the background compaction
// goroutine.
func New(ctx context.Context, config *Config) (*Engine, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "engine configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	idx, err := index.New(ctx, &index.Config{DataDir: config.Options.DataDir, Logger: config.Logger})
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, &storage.Config{Logger: config.Logger, Options: config.Options})
	if err != nil {
		return nil, err
	}

	if err := recovery.Run(recovery.Config{Storage: store, Index: idx, Logger: config.Logger}); err != nil {
		store.Close()
		return nil, err
	}

	comp := compaction.New(config.Logger)

	e := &Engine{
		opts:       config.Options,
		log:        config.Logger,
		index:      idx,
		storage:    store,
		compaction: comp,
	}

	if config.Options.CompactInterval > 0 {
		e.stopBackground = make(chan struct{})
		e.backgroundDone = make(chan struct{})
		go e.runBackgroundCompaction(config.Options.CompactInterval)
	}

	return e, nil
}

// Set stores a key/value pair durably, overwriting any previous value for
// the same key. It returns once the record has been appended (and, if
// Options.SyncOnWrite is set, fsynced) to the active segment.
func (e *Engine) Set(ctx context.Context, key string, value []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	keyBytes := []byte(key)
	ts := time.Now().UnixNano()
	iovec := record.Encode(keyBytes, value, ts)
	size := record.Size(keyBytes, value, record.KindWrite)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	fileID, offset, err := e.storage.AppendActive(iovec, size)
	if err != nil {
		return err
	}

	e.index.Set(key, index.Location{
		FileID: fileID, Offset: offset,
		EntrySize: uint32(size), ValueSize: uint32(len(value)), Timestamp: ts,
	})
	return nil
}

// Get retrieves the value for key. The second return value reports whether
// the key was found; a false return with a nil error means the key simply
// has no live entry, not a failure.
func (e *Engine) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if e.closed.Load() {
		return nil, false, ErrEngineClosed
	}

	loc, err := e.index.Get(key)
	if err != nil {
		if errors.IsIndexError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	segment, err := e.storage.Get(loc.FileID)
	if err != nil {
		return nil, false, err
	}

	segment.Acquire()
	defer segment.Release()

	buf := make([]byte, loc.EntrySize)
	if err := segment.PreadExact(buf, loc.Offset); err != nil {
		return nil, false, err
	}

	header, err := record.DecodeHeader(buf[:record.HeaderSize])
	if err != nil {
		return nil, false, err
	}

	keyStart := record.HeaderSize
	keyEnd := keyStart + int(header.KeySize)
	gotKey := buf[keyStart:keyEnd]
	value := buf[keyEnd:]

	if err := record.Verify(header, gotKey, value, header.CRC); err != nil {
		return nil, false, errors.NewCorruptRecordError(err, loc.FileID, loc.Offset).WithKey(key)
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Remove deletes key by appending a tombstone record. It returns
// ErrKeyNotFound if the key has no live entry — removing an already-absent
// key is the one operation the store's error taxonomy treats as a genuine
// usage error rather than a no-op.
func (e *Engine) Remove(ctx context.Context, key string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if _, err := e.index.Get(key); err != nil {
		return stdErrors.Join(ErrKeyNotFound, err)
	}

	keyBytes := []byte(key)
	ts := time.Now().UnixNano()
	iovec := record.EncodeTombstone(keyBytes, ts)
	size := record.Size(keyBytes, nil, record.KindDelete)

	if _, _, err := e.storage.AppendActive(iovec, size); err != nil {
		return err
	}

	e.index.Delete(key)
	return nil
}

// Compact runs one merge pass over every segment other than the active
// one, reclaiming the space occupied by keys those segments no longer hold
// the live version of. It serializes against Set/Remove the same way they
// serialize against each other.
func (e *Engine) Compact(ctx context.Context) (compaction.Result, error) {
	if e.closed.Load() {
		return compaction.Result{}, ErrEngineClosed
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	return e.compaction.Run(ctx, e.storage, e.index)
}

// Len reports how many live keys the store currently holds.
func (e *Engine) Len() int {
	return e.index.Len()
}

// runBackgroundCompaction drives the optional periodic compaction
// goroutine started by New when Options.CompactInterval is non-zero.
func (e *Engine) runBackgroundCompaction(interval time.Duration) {
	defer close(e.backgroundDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopBackground:
			return
		case <-ticker.C:
			if _, err := e.Compact(context.Background()); err != nil {
				e.log.Warnw("background compaction failed", "error", err)
			}
		}
	}
}

// Close gracefully shuts down the engine and releases all associated resources.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	if e.stopBackground != nil {
		close(e.stopBackground)
		<-e.backgroundDone
	}

	idxErr := e.index.Close()
	storeErr := e.storage.Close()
	if storeErr != nil {
		return storeErr
	}
	return idxErr
}

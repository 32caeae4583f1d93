// Package compaction reclaims the space older segments waste on overwritten
// and deleted keys. It rewrites every key whose current location points at
// a non-active segment into one fresh segment, swings the index to the new
// location one key at a time so concurrent reads are never blocked, and
// only deletes the old segments once nothing can still be reading them.
package compaction

import (
	"context"
	stdErrors "errors"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/internal/record"
	"github.com/iamNilotpal/ignite/internal/storage"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Run when a compaction pass is already in
// flight; the engine serializes compaction the same way it serializes
// writes, so this should only surface if a caller bypasses that.
var ErrAlreadyRunning = stdErrors.New("compaction: a pass is already running")

// Compaction coordinates merge passes over a store's segments. It holds no
// segment state of its own — Storage and Index remain the sources of
// truth — only the flag that prevents two passes from overlapping.
type Compaction struct {
	log     *zap.SugaredLogger
	running atomic.Bool
}

// New returns a Compaction coordinator. Construction never fails; it has no
// external dependencies to validate.
func New(log *zap.SugaredLogger) *Compaction {
	return &Compaction{log: log}
}

// Result summarizes what a compaction pass accomplished.
type Result struct {
	SegmentsRemoved int
	KeysRewritten   int
	BytesWritten    int64
}

// Run performs one compaction pass: every segment id currently open other
// than the active one is a candidate. Each live key whose index entry
// points at a candidate segment is read and rewritten into one new merged
// segment; the index is then swung, key by key, to the new location; and
// finally every candidate segment is deleted, except one that still has
// in-flight readers, which stays open until a later pass.
func (c *Compaction) Run(ctx context.Context, st *storage.Storage, idx *index.Index) (Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	activeID := st.ActiveID()
	candidates := make(map[uint64]struct{})
	for _, id := range st.SegmentIDs() {
		if id != activeID {
			candidates[id] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		c.log.Infow("compaction skipped: no eligible segments")
		return Result{}, nil
	}

	entries := idx.Entries()
	toRewrite := make([]index.Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := candidates[e.FileID]; ok {
			toRewrite = append(toRewrite, e)
		}
	}

	c.log.Infow("starting compaction", "candidateSegments", len(candidates), "keysToRewrite", len(toRewrite))

	if len(toRewrite) == 0 {
		return c.finish(st, candidates, Result{SegmentsRemoved: len(candidates)})
	}

	dst, err := st.NewCompactedSegment()
	if err != nil {
		return Result{}, err
	}

	var bytesWritten int64
	for _, e := range toRewrite {
		src, err := st.Get(e.FileID)
		if err != nil {
			// The source segment disappeared out from under a stale index
			// entry, which means something else already compacted it;
			// skip rather than fail the whole pass.
			continue
		}

		body := make([]byte, e.EntrySize)
		src.Acquire()
		readErr := src.PreadExact(body, e.Offset)
		src.Release()
		if readErr != nil {
			return Result{}, readErr
		}

		header, err := record.DecodeHeader(body[:record.HeaderSize])
		if err != nil {
			return Result{}, err
		}

		keyStart := record.HeaderSize
		keyEnd := keyStart + int(header.KeySize)
		key := body[keyStart:keyEnd]
		value := body[keyEnd:]

		if err := record.Verify(header, key, value, header.CRC); err != nil {
			return Result{}, errors.NewCorruptRecordError(err, e.FileID, e.Offset).WithKey(string(key))
		}

		iovec := record.Encode(key, value, header.Timestamp)
		offset, err := dst.Append(iovec)
		if err != nil {
			return Result{}, err
		}

		entrySize := uint32(record.Size(key, value, record.KindWrite))
		idx.Relocate(e.Key, dst.ID(), offset, entrySize, uint32(len(value)))
		bytesWritten += int64(entrySize)
	}

	if err := dst.Sync(); err != nil {
		return Result{}, err
	}

	return c.finish(st, candidates, Result{
		SegmentsRemoved: len(candidates),
		KeysRewritten:   len(toRewrite),
		BytesWritten:    bytesWritten,
	})
}

// finish deletes every candidate segment now that every live key it held
// has been relocated, and returns the accumulated result.
func (c *Compaction) finish(st *storage.Storage, candidates map[uint64]struct{}, result Result) (Result, error) {
	ids := make([]uint64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}

	if err := st.RemoveSegments(ids); err != nil {
		return result, err
	}

	c.log.Infow(
		"compaction complete",
		"segmentsRemoved", result.SegmentsRemoved,
		"keysRewritten", result.KeysRewritten,
		"bytesWritten", result.BytesWritten,
	)
	return result, nil
}

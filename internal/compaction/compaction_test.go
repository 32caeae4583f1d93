package compaction

import (
	"context"
	"os"
	"testing"

	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/internal/record"
	"github.com/iamNilotpal/ignite/internal/storage"
	"github.com/iamNilotpal/ignite/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T, dir string, segmentSize uint64) *storage.Storage {
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	if segmentSize > 0 {
		opts.SegmentSize = segmentSize
	}

	st, err := storage.New(context.Background(), &storage.Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return st
}

func newTestIndex(t *testing.T, dir string) *index.Index {
	idx, err := index.New(context.Background(), &index.Config{DataDir: dir, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return idx
}

// set mimics engine.Set: append a Write record and update the index with
// its resulting location.
func set(t *testing.T, st *storage.Storage, idx *index.Index, key, value string, ts int64) {
	t.Helper()
	iovec := record.Encode([]byte(key), []byte(value), ts)
	size := record.Size([]byte(key), []byte(value), record.KindWrite)
	fileID, offset, err := st.AppendActive(iovec, size)
	require.NoError(t, err)
	idx.Set(key, index.Location{FileID: fileID, Offset: offset, EntrySize: uint32(size), ValueSize: uint32(len(value)), Timestamp: ts})
}

func TestRunSkipsWhenOnlyActiveSegmentExists(t *testing.T) {
	dir := t.TempDir()
	st := newTestStorage(t, dir, 0)
	defer st.Close()
	idx := newTestIndex(t, dir)
	defer idx.Close()

	set(t, st, idx, "k1", "v1", 1)

	c := New(zap.NewNop().Sugar())
	result, err := c.Run(context.Background(), st, idx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SegmentsRemoved)
}

func TestRunMergesOldSegmentsAndPreservesLatestValue(t *testing.T) {
	dir := t.TempDir()
	// Small segment size forces a rotation after a couple of writes.
	st := newTestStorage(t, dir, 48)
	defer st.Close()
	idx := newTestIndex(t, dir)
	defer idx.Close()

	set(t, st, idx, "k1", "v1", 1) // lands in segment 0
	set(t, st, idx, "k1", "v2", 2) // overwrite, likely rotates into segment 1
	set(t, st, idx, "k2", "v3", 3)

	activeBefore := st.ActiveID()
	segmentsBefore := len(st.SegmentIDs())
	require.Greater(t, segmentsBefore, 1)

	c := New(zap.NewNop().Sugar())
	result, err := c.Run(context.Background(), st, idx)
	require.NoError(t, err)
	assert.Greater(t, result.SegmentsRemoved, 0)

	loc, err := idx.Get("k1")
	require.NoError(t, err)

	lf, err := st.Get(loc.FileID)
	require.NoError(t, err)

	buf := make([]byte, loc.EntrySize)
	require.NoError(t, lf.PreadExact(buf, loc.Offset))

	header, err := record.DecodeHeader(buf[:record.HeaderSize])
	require.NoError(t, err)
	value := buf[int(record.HeaderSize)+int(header.KeySize):]
	assert.Equal(t, "v2", string(value))

	// k2 lived in the segment that was active before the pass, which is not a
	// candidate, so it keeps its location; the merged segment now has the
	// highest id and is the active one.
	loc2, err := idx.Get("k2")
	require.NoError(t, err)
	assert.Equal(t, activeBefore, loc2.FileID)
}

func TestRunShrinksDirectorySize(t *testing.T) {
	dir := t.TempDir()
	st := newTestStorage(t, dir, 48)
	idx := newTestIndex(t, dir)

	for i := 0; i < 10; i++ {
		set(t, st, idx, "k1", "overwritten-many-times", int64(i))
	}

	sizeBefore := dirSize(t, dir)

	c := New(zap.NewNop().Sugar())
	_, err := c.Run(context.Background(), st, idx)
	require.NoError(t, err)

	sizeAfter := dirSize(t, dir)
	assert.Less(t, sizeAfter, sizeBefore)

	st.Close()
	idx.Close()
}

func TestRunIsExclusiveAgainstConcurrentPass(t *testing.T) {
	c := New(zap.NewNop().Sugar())
	c.running.Store(true)

	_, err := c.Run(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func dirSize(t *testing.T, dir string) int64 {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var total int64
	for _, e := range entries {
		info, err := e.Info()
		require.NoError(t, err)
		total += info.Size()
	}
	return total
}

package recovery

import (
	"context"
	"testing"

	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/internal/record"
	"github.com/iamNilotpal/ignite/internal/storage"
	"github.com/iamNilotpal/ignite/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T, dir string) *storage.Storage {
	opts := options.NewDefaultOptions()
	opts.DataDir = dir

	st, err := storage.New(context.Background(), &storage.Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return st
}

func newTestIndex(t *testing.T, dir string) *index.Index {
	idx, err := index.New(context.Background(), &index.Config{DataDir: dir, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return idx
}

func TestRunRebuildsIndexFromSegments(t *testing.T) {
	dir := t.TempDir()

	st := newTestStorage(t, dir)
	iovec := record.Encode([]byte("k1"), []byte("v1"), 1)
	size := record.Size([]byte("k1"), []byte("v1"), record.KindWrite)
	_, _, err := st.AppendActive(iovec, size)
	require.NoError(t, err)

	iovec2 := record.Encode([]byte("k2"), []byte("v2"), 2)
	size2 := record.Size([]byte("k2"), []byte("v2"), record.KindWrite)
	_, _, err = st.AppendActive(iovec2, size2)
	require.NoError(t, err)

	require.NoError(t, st.Close())

	st2 := newTestStorage(t, dir)
	defer st2.Close()
	idx := newTestIndex(t, dir)
	defer idx.Close()

	require.NoError(t, Run(Config{Storage: st2, Index: idx, Logger: zap.NewNop().Sugar()}))
	assert.Equal(t, 2, idx.Len())

	loc, err := idx.Get("k1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, loc.Offset)
}

func TestRunAppliesTombstonesDuringReplay(t *testing.T) {
	dir := t.TempDir()

	st := newTestStorage(t, dir)
	iovec := record.Encode([]byte("k1"), []byte("v1"), 1)
	size := record.Size([]byte("k1"), []byte("v1"), record.KindWrite)
	_, _, err := st.AppendActive(iovec, size)
	require.NoError(t, err)

	tomb := record.EncodeTombstone([]byte("k1"), 2)
	tombSize := record.Size([]byte("k1"), nil, record.KindDelete)
	_, _, err = st.AppendActive(tomb, tombSize)
	require.NoError(t, err)

	require.NoError(t, st.Close())

	st2 := newTestStorage(t, dir)
	defer st2.Close()
	idx := newTestIndex(t, dir)
	defer idx.Close()

	require.NoError(t, Run(Config{Storage: st2, Index: idx, Logger: zap.NewNop().Sugar()}))
	assert.Equal(t, 0, idx.Len())

	_, err = idx.Get("k1")
	assert.Error(t, err)
}

func TestRunTruncatesSegmentEndingMidRecord(t *testing.T) {
	dir := t.TempDir()

	st := newTestStorage(t, dir)
	iovec := record.Encode([]byte("k1"), []byte("v1"), 1)
	size := record.Size([]byte("k1"), []byte("v1"), record.KindWrite)
	_, _, err := st.AppendActive(iovec, size)
	require.NoError(t, err)

	// Append a deliberately truncated tail: only the header's first few bytes.
	garbage := [][]byte{[]byte{1, 2, 3}}
	_, _, err = st.AppendActive(garbage, 3)
	require.NoError(t, err)

	require.NoError(t, st.Close())

	st2 := newTestStorage(t, dir)
	defer st2.Close()
	idx := newTestIndex(t, dir)
	defer idx.Close()

	require.NoError(t, Run(Config{Storage: st2, Index: idx, Logger: zap.NewNop().Sugar()}))
	assert.Equal(t, 1, idx.Len())

	_, err = idx.Get("k1")
	assert.NoError(t, err)
}

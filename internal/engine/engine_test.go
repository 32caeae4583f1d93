package engine

import (
	"context"
	"testing"

	"github.com/iamNilotpal/ignite/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, dir string, segmentSize uint64) *Engine {
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	if segmentSize > 0 {
		opts.SegmentSize = segmentSize
	}

	e, err := New(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return e
}

func TestSetGetRoundTrip(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 0)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "k1", []byte("v1")))

	value, found, err := e.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", string(value))
}

func TestGetMissingKeyReportsNotFoundWithoutError(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 0)
	defer e.Close()

	value, found, err := e.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestSetOverwritesPreviousValue(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 0)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "k1", []byte("v1")))
	require.NoError(t, e.Set(ctx, "k1", []byte("v2")))

	value, found, err := e.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", string(value))
	assert.Equal(t, 1, e.Len())
}

func TestRemoveThenGetMisses(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 0)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "k1", []byte("v1")))
	require.NoError(t, e.Remove(ctx, "k1"))

	_, found, err := e.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveTwiceReturnsKeyNotFound(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 0)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "k1", []byte("v1")))
	require.NoError(t, e.Remove(ctx, "k1"))

	err := e.Remove(ctx, "k1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSetRejectsEmptyKey(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 0)
	defer e.Close()

	err := e.Set(context.Background(), "", []byte("v1"))
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e1 := newTestEngine(t, dir, 0)
	require.NoError(t, e1.Set(ctx, "k1", []byte("v1")))
	require.NoError(t, e1.Set(ctx, "k2", []byte("v2")))
	require.NoError(t, e1.Remove(ctx, "k2"))
	require.NoError(t, e1.Close())

	e2 := newTestEngine(t, dir, 0)
	defer e2.Close()

	value, found, err := e2.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", string(value))

	_, found, err = e2.Get(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCompactReclaimsOverwrittenSpace(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 48)
	defer e.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Set(ctx, "k1", []byte("overwritten-repeatedly")))
	}

	result, err := e.Compact(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.SegmentsRemoved, 0)

	value, found, err := e.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "overwritten-repeatedly", string(value))
}

func TestOperationsAfterCloseReturnEngineClosed(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 0)
	require.NoError(t, e.Close())

	ctx := context.Background()
	assert.ErrorIs(t, e.Set(ctx, "k1", []byte("v1")), ErrEngineClosed)

	_, _, err := e.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrEngineClosed)

	assert.ErrorIs(t, e.Remove(ctx, "k1"), ErrEngineClosed)
}

func TestConcurrentReadsDuringWrite(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), 0)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "k1", []byte("v1")))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_, _, _ = e.Get(ctx, "k1")
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, e.Set(ctx, "k2", []byte("v2")))
	}
	<-done
}

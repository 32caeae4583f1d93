package seginfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNameAndParseIDRoundTrip(t *testing.T) {
	for _, id := range []uint64{0, 1, 42, 1_000_000} {
		name := FileName(id)
		got, err := ParseID(name)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestParseIDRejectsWrongExtension(t *testing.T) {
	_, err := ParseID("12.seg")
	assert.Error(t, err)
}

func TestDiscoverSegmentsSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []uint64{10, 2, 1, 100} {
		f, err := os.Create(filepath.Join(dir, FileName(id)))
		require.NoError(t, err)
		f.Close()
	}

	// A non-segment file in the same directory must be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{}"), 0644))

	ids, err := DiscoverSegments(dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 10, 100}, ids)
}

func TestNextIDEmptyDirStartsAtZero(t *testing.T) {
	dir := t.TempDir()
	id, err := NextID(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
}

func TestNextIDContinuesAfterHighestSegment(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []uint64{0, 1, 2} {
		f, err := os.Create(filepath.Join(dir, FileName(id)))
		require.NoError(t, err)
		f.Close()
	}

	id, err := NextID(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id)
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/ignite/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T, segmentSize uint64) (*Storage, string) {
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	if segmentSize > 0 {
		opts.SegmentSize = segmentSize
	}

	st, err := New(context.Background(), &Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return st, dir
}

func TestNewBootstrapsSegmentZeroOnEmptyDir(t *testing.T) {
	st, _ := newTestStorage(t, 0)
	defer st.Close()

	assert.Equal(t, []uint64{0}, st.SegmentIDs())
	assert.Equal(t, uint64(0), st.ActiveID())
}

func TestAppendActiveWritesAndAdvancesOffset(t *testing.T) {
	st, _ := newTestStorage(t, 0)
	defer st.Close()

	payload := [][]byte{[]byte("hello "), []byte("world")}
	size := 11

	fileID, offset, err := st.AppendActive(payload, size)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fileID)
	assert.EqualValues(t, 0, offset)

	_, offset2, err := st.AppendActive(payload, size)
	require.NoError(t, err)
	assert.EqualValues(t, size, offset2)
}

func TestAppendActiveRotatesWhenSegmentFull(t *testing.T) {
	st, _ := newTestStorage(t, 16)
	defer st.Close()

	payload := [][]byte{[]byte("0123456789")}
	fileID1, _, err := st.AppendActive(payload, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fileID1)

	// A second 10-byte write doesn't fit in the remaining 6 bytes of a
	// 16-byte segment, so this must land in a freshly rotated segment.
	fileID2, offset2, err := st.AppendActive(payload, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fileID2)
	assert.EqualValues(t, 0, offset2)

	assert.Equal(t, []uint64{0, 1}, st.SegmentIDs())
	assert.Equal(t, uint64(1), st.ActiveID())
}

func TestGetReturnsOpenSegment(t *testing.T) {
	st, _ := newTestStorage(t, 0)
	defer st.Close()

	lf, err := st.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), lf.ID())
}

func TestGetMissingSegmentErrors(t *testing.T) {
	st, _ := newTestStorage(t, 0)
	defer st.Close()

	_, err := st.Get(99)
	assert.Error(t, err)
}

func TestRemoveSegmentsRefusesActive(t *testing.T) {
	st, _ := newTestStorage(t, 0)
	defer st.Close()

	err := st.RemoveSegments([]uint64{st.ActiveID()})
	assert.Error(t, err)
}

func TestRemoveSegmentsSkipsBusySegment(t *testing.T) {
	st, _ := newTestStorage(t, 16)
	defer st.Close()

	payload := [][]byte{[]byte("0123456789")}
	_, _, err := st.AppendActive(payload, 10)
	require.NoError(t, err)
	_, _, err = st.AppendActive(payload, 10) // rotates to segment 1
	require.NoError(t, err)

	lf, err := st.Get(0)
	require.NoError(t, err)
	lf.Acquire()

	require.NoError(t, st.RemoveSegments([]uint64{0}))

	// Segment 0 should still be open since it had an in-flight reader.
	_, err = st.Get(0)
	assert.NoError(t, err)

	lf.Release()
	require.NoError(t, st.RemoveSegments([]uint64{0}))
	_, err = st.Get(0)
	assert.Error(t, err)
}

func TestNewCompactedSegmentOpensFreshSegment(t *testing.T) {
	st, dir := newTestStorage(t, 0)
	defer st.Close()

	lf, err := st.NewCompactedSegment()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), lf.ID())

	_, err = os.Stat(filepath.Join(dir, "1.log"))
	assert.NoError(t, err)
}

func TestLogFileAppendAndPreadExactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	lf, err := openSegment(dir, 0)
	require.NoError(t, err)
	defer lf.Close()

	iovec := [][]byte{[]byte("abc"), []byte("def")}
	offset, err := lf.Append(iovec)
	require.NoError(t, err)
	assert.EqualValues(t, 0, offset)

	buf := make([]byte, 6)
	require.NoError(t, lf.PreadExact(buf, 0))
	assert.Equal(t, "abcdef", string(buf))
}

func TestLogFilePreadvExactDetectsShortRead(t *testing.T) {
	dir := t.TempDir()
	lf, err := openSegment(dir, 0)
	require.NoError(t, err)
	defer lf.Close()

	_, err = lf.Append([][]byte{[]byte("abc")})
	require.NoError(t, err)

	buf := make([]byte, 10)
	err = lf.PreadvExact([][]byte{buf}, 0)
	assert.Error(t, err)
}

func TestLogFileRefCounting(t *testing.T) {
	dir := t.TempDir()
	lf, err := openSegment(dir, 0)
	require.NoError(t, err)
	defer lf.Close()

	assert.EqualValues(t, 0, lf.RefCount())
	lf.Acquire()
	lf.Acquire()
	assert.EqualValues(t, 2, lf.RefCount())
	lf.Release()
	assert.EqualValues(t, 1, lf.RefCount())
}

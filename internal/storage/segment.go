package storage

import (
	stdErrors "errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/seginfo"
	"golang.org/x/sys/unix"
)

// LogFile is a single append-only segment file. Writers append through it
// serially (the engine guarantees at most one writer at a time); readers
// may call PreadvExact concurrently with an in-flight append, since reads
// never touch bytes past the position they were told to read at.
//
// refs tracks how many in-flight reads currently hold a reference to this
// file. The compactor checks it before deleting a segment that compaction
// has made obsolete, so a read that started just before compaction swung
// the index never has its file disappear underneath it.
type LogFile struct {
	id   uint64
	path string
	file *os.File

	size atomic.Int64 // current end-of-file offset; also the offset the next append lands at.
	refs atomic.Int32
	mu   sync.Mutex // serializes Append so two appends never claim the same offset.

	closed atomic.Bool
}

// openSegment opens (creating if necessary) the segment file with the given
// id in dataDir and records its current size as the offset the next append
// lands at.
func openSegment(dataDir string, id uint64) (*LogFile, error) {
	filename := seginfo.FileName(id)
	path := dataDir + string(os.PathSeparator) + filename

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to open segment file").
			WithSegmentID(int(id)).
			WithFileName(filename).
			WithPath(path).
			WithDetail("flags", []string{"O_CREATE", "O_RDWR"})
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat segment file").
			WithSegmentID(int(id)).WithFileName(filename).WithPath(path)
	}

	lf := &LogFile{id: id, path: path, file: file}
	lf.size.Store(stat.Size())
	return lf, nil
}

// ID returns the segment's file id.
func (lf *LogFile) ID() uint64 { return lf.id }

// Path returns the segment's on-disk path.
func (lf *LogFile) Path() string { return lf.path }

// Size returns the current logical size of the segment.
func (lf *LogFile) Size() int64 { return lf.size.Load() }

// Acquire registers an in-flight reader against this segment, preventing
// the compactor from deleting it out from under the read.
func (lf *LogFile) Acquire() { lf.refs.Add(1) }

// Release records that an in-flight reader has finished with this segment.
func (lf *LogFile) Release() { lf.refs.Add(-1) }

// RefCount reports how many readers currently hold this segment open.
func (lf *LogFile) RefCount() int32 { return lf.refs.Load() }

// Append writes iovec to the end of the segment in a single vectored system
// call and returns the byte offset the record now starts at. A short write
// is reported as an error and leaves the segment's size unchanged, so the
// next append starts at the same offset and overwrites the partial bytes.
// It is the
// caller's responsibility to serialize Append calls across all writers of
// the store — LogFile only serializes against itself.
func (lf *LogFile) Append(iovec [][]byte) (offset int64, err error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.closed.Load() {
		return 0, errors.NewStorageError(nil, errors.ErrorCodeIO, "cannot append to closed segment").
			WithSegmentID(int(lf.id)).WithPath(lf.path)
	}

	want := 0
	for _, b := range iovec {
		want += len(b)
	}

	offset = lf.size.Load()
	n, err := unix.Pwritev(int(lf.file.Fd()), iovec, offset)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "vectored write to segment failed").
			WithSegmentID(int(lf.id)).WithOffset(int(offset)).WithPath(lf.path)
	}
	if n != want {
		return 0, errors.NewStorageError(io.ErrShortWrite, errors.ErrorCodeIO, "short vectored write to segment").
			WithSegmentID(int(lf.id)).WithOffset(int(offset)).WithPath(lf.path).
			WithDetail("wrote", n).WithDetail("want", want)
	}

	lf.size.Add(int64(n))
	return offset, nil
}

// PreadExact reads exactly len(buf) bytes starting at offset without
// disturbing the file's shared write cursor. A genuine short read — the
// file ends before buf is filled — is reported as an error wrapping
// io.ErrUnexpectedEOF, distinguishable via errors.Is from any other
// underlying I/O failure (permission, disk error, ...), which callers
// must treat as fatal rather than as a benign end-of-segment.
func (lf *LogFile) PreadExact(buf []byte, offset int64) error {
	n, err := lf.file.ReadAt(buf, offset)
	if err == nil {
		return nil
	}
	if err == io.EOF && n == len(buf) {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.NewStorageError(io.ErrUnexpectedEOF, errors.ErrorCodeCorrupt, "segment ended before the requested read completed").
			WithSegmentID(int(lf.id)).WithOffset(int(offset)).WithPath(lf.path).
			WithDetail("read", n).WithDetail("want", len(buf))
	}
	return errors.NewStorageError(err, errors.ErrorCodeIO, "positional read from segment failed").
		WithSegmentID(int(lf.id)).WithOffset(int(offset)).WithPath(lf.path)
}

// PreadvExact reads into every buffer in iovec, in order, starting at
// offset. It loops internally — reissuing the vectored read against
// whatever of the iovec remains unfilled — until either the whole iovec
// has been read or the segment ends, and retries a read interrupted by a
// signal instead of surfacing EINTR to the caller. A genuine short read
// at end-of-file is reported wrapping io.ErrUnexpectedEOF, the same
// sentinel PreadExact uses, so callers can tell it apart from any other
// I/O failure.
func (lf *LogFile) PreadvExact(iovec [][]byte, offset int64) error {
	want := 0
	for _, b := range iovec {
		want += len(b)
	}

	remaining := append([][]byte(nil), iovec...)
	var total int

	for total < want {
		n, err := unix.Preadv(int(lf.file.Fd()), remaining, offset+int64(total))
		if err != nil {
			if stdErrors.Is(err, unix.EINTR) {
				continue
			}
			return errors.NewStorageError(err, errors.ErrorCodeIO, "vectored positional read from segment failed").
				WithSegmentID(int(lf.id)).WithOffset(int(offset)).WithPath(lf.path)
		}
		if n == 0 {
			return errors.NewStorageError(io.ErrUnexpectedEOF, errors.ErrorCodeCorrupt, "segment ended mid-record").
				WithSegmentID(int(lf.id)).WithOffset(int(offset)).WithPath(lf.path).
				WithDetail("read", total).WithDetail("want", want)
		}
		total += n
		remaining = trimIovec(remaining, n)
	}

	return nil
}

// trimIovec drops the first n already-read bytes from iovec, splitting or
// dropping whole buffers as needed, so PreadvExact's retry loop can resume
// a short vectored read exactly where it left off.
func trimIovec(iovec [][]byte, n int) [][]byte {
	for n > 0 && len(iovec) > 0 {
		if n < len(iovec[0]) {
			iovec[0] = iovec[0][n:]
			return iovec
		}
		n -= len(iovec[0])
		iovec = iovec[1:]
	}
	return iovec
}

// Sync flushes the segment's dirty pages to stable storage.
func (lf *LogFile) Sync() error {
	if err := lf.file.Sync(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to sync segment file").
			WithSegmentID(int(lf.id)).WithPath(lf.path)
	}
	return nil
}

// Close closes the underlying file handle. It does not check RefCount —
// callers that need to wait for readers to drain before removing a segment
// from disk should do so before calling Close.
func (lf *LogFile) Close() error {
	if !lf.closed.CompareAndSwap(false, true) {
		return nil
	}
	return lf.file.Close()
}

// Remove closes and deletes the segment file from disk.
func (lf *LogFile) Remove() error {
	if err := lf.Close(); err != nil {
		return err
	}
	if err := os.Remove(lf.path); err != nil && !os.IsNotExist(err) {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to remove segment file").
			WithSegmentID(int(lf.id)).WithPath(lf.path)
	}
	return nil
}

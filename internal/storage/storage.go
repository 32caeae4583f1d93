// Package storage manages the set of append-only segment files that back
// the store: the currently active segment that accepts new writes, and the
// older, immutable segments that reads and compaction still need access to.
//
// Segment files are named "<id>.log" in the data directory, with ids
// assigned sequentially starting at zero. The active segment rotates to a
// new file once it reaches the configured size threshold; compaction later
// replaces a run of old segments with a single merged one under a fresh id.
package storage

import (
	"context"
	stdErrors "errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/filesys"
	"github.com/iamNilotpal/ignite/pkg/options"
	"github.com/iamNilotpal/ignite/pkg/seginfo"
	"go.uber.org/zap"
)

var (
	ErrSegmentClosed  = stdErrors.New("operation failed: cannot access closed segment")
	ErrStorageClosed  = stdErrors.New("operation failed: cannot access closed storage")
	ErrSegmentMissing = stdErrors.New("operation failed: segment does not exist")
)

// Storage owns every open segment file and decides which one is active.
type Storage struct {
	mu       sync.RWMutex
	segments map[uint64]*LogFile // every segment currently open, keyed by id.
	order    []uint64            // segment ids ascending; order[len-1] is always the active segment.
	nextID   atomic.Uint64       // next id to hand out, for rotation and compaction output segments.

	options *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool
}

// Config encapsulates all the configuration parameters required to
// initialize a Storage instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New discovers existing segments in Options.DataDir and opens a brand-new
// active segment one past the highest id found (0 if the directory was
// empty) — it never resumes appending into a segment left active by a
// prior process — then returns a Storage ready to serve Append and Pread
// calls.
func New(ctx context.Context, config *Config) (*Storage, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "storage configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	config.Logger.Infow("initializing storage", "dataDir", config.Options.DataDir)

	if err := filesys.CreateDir(config.Options.DataDir, 0755, true); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to create data directory").
			WithPath(config.Options.DataDir).WithDetail("permission", "0755")
	}

	ids, err := seginfo.DiscoverSegments(config.Options.DataDir)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to discover existing segments").
			WithPath(config.Options.DataDir)
	}

	s := &Storage{
		segments: make(map[uint64]*LogFile, len(ids)+1),
		options:  config.Options,
		log:      config.Logger,
	}

	if len(ids) == 0 {
		config.Logger.Infow("no existing segments found, bootstrapping segment 0")
		lf, err := openSegment(config.Options.DataDir, 0)
		if err != nil {
			return nil, err
		}
		s.segments[0] = lf
		s.order = []uint64{0}
		s.nextID.Store(1)
		return s, nil
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		lf, err := openSegment(config.Options.DataDir, id)
		if err != nil {
			s.closeAll()
			return nil, err
		}
		s.segments[id] = lf
	}
	s.order = ids
	nextID, err := seginfo.NextID(config.Options.DataDir)
	if err != nil {
		s.closeAll()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to compute next segment id").
			WithPath(config.Options.DataDir)
	}
	s.nextID.Store(nextID)

	// open always starts a brand-new active segment, never reopens the
	// previous process's highest-id segment for further appends — that
	// segment becomes just another immutable segment available for reads.
	config.Logger.Infow("opening fresh active segment", "previousActiveID", ids[len(ids)-1])
	if _, err := s.rotateLocked(); err != nil {
		s.closeAll()
		return nil, err
	}

	config.Logger.Infow("storage initialized", "segments", len(s.segments), "activeID", s.activeIDLocked())
	return s, nil
}

// DataDir returns the directory segments are stored in.
func (s *Storage) DataDir() string { return s.options.DataDir }

// activeIDLocked returns the id of the current active segment. Callers
// must hold s.mu.
func (s *Storage) activeIDLocked() uint64 {
	return s.order[len(s.order)-1]
}

// Active returns the currently active segment.
func (s *Storage) Active() (*LogFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return nil, ErrStorageClosed
	}
	return s.segments[s.activeIDLocked()], nil
}

// ActiveID returns the id of the currently active segment.
func (s *Storage) ActiveID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeIDLocked()
}

// Get returns the segment with the given id, for reads.
func (s *Storage) Get(id uint64) (*LogFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		return nil, ErrStorageClosed
	}

	lf, ok := s.segments[id]
	if !ok {
		return nil, errors.NewStorageError(ErrSegmentMissing, errors.ErrorCodeIO, "segment not open").
			WithSegmentID(int(id))
	}
	return lf, nil
}

// SegmentIDs returns every currently open segment id, ascending.
func (s *Storage) SegmentIDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint64, len(s.order))
	copy(out, s.order)
	return out
}

// AppendActive writes iovec to the active segment, rotating to a fresh
// segment first if the active one doesn't have room. It returns the
// segment id and byte offset the record was written at.
func (s *Storage) AppendActive(iovec [][]byte, size int) (fileID uint64, offset int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return 0, 0, ErrStorageClosed
	}

	active := s.segments[s.activeIDLocked()]
	if uint64(active.Size())+uint64(size) > s.options.SegmentSize {
		active, err = s.rotateLocked()
		if err != nil {
			return 0, 0, err
		}
	}

	offset, err = active.Append(iovec)
	if err != nil {
		return 0, 0, err
	}

	if s.options.SyncOnWrite {
		if err := active.Sync(); err != nil {
			return 0, 0, err
		}
	}

	return active.id, offset, nil
}

// rotateLocked opens a new active segment under the next unused id.
// Callers must hold s.mu for writing.
func (s *Storage) rotateLocked() (*LogFile, error) {
	id := s.nextID.Add(1) - 1
	lf, err := openSegment(s.options.DataDir, id)
	if err != nil {
		return nil, err
	}
	s.segments[id] = lf
	s.order = append(s.order, id)
	s.log.Infow("rotated to new active segment", "segmentID", id)
	return lf, nil
}

// NewCompactedSegment opens a fresh segment file under the next unused id,
// for the compactor to write merged records into. Its id is higher than every
// other open segment's, so once registered it is also the active segment:
// later appends land after the merged records.
func (s *Storage) NewCompactedSegment() (*LogFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrStorageClosed
	}

	id := s.nextID.Add(1) - 1
	lf, err := openSegment(s.options.DataDir, id)
	if err != nil {
		return nil, err
	}

	s.segments[id] = lf
	s.order = append(s.order, id)
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
	return lf, nil
}

// RemoveSegments closes and deletes the given segments, which must not
// include the active segment. A segment that still has in-flight readers
// is left open and skipped rather than failing the whole call — it becomes
// a candidate again on the next compaction pass, once those reads have
// finished.
func (s *Storage) RemoveSegments(ids []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	activeID := s.activeIDLocked()
	for _, id := range ids {
		if id == activeID {
			return errors.NewStorageError(nil, errors.ErrorCodeIO, "refusing to remove active segment").
				WithSegmentID(int(id))
		}

		lf, ok := s.segments[id]
		if !ok {
			continue
		}
		if lf.RefCount() > 0 {
			s.log.Infow("deferring segment removal: still has in-flight readers", "segmentID", id)
			continue
		}
		if err := lf.Remove(); err != nil {
			return err
		}
		delete(s.segments, id)
	}

	s.order = s.order[:0]
	for id := range s.segments {
		s.order = append(s.order, id)
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })

	return nil
}

func (s *Storage) closeAll() {
	for _, lf := range s.segments {
		lf.Close()
	}
}

// Close closes every open segment file.
func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrStorageClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, lf := range s.segments {
		if err := lf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

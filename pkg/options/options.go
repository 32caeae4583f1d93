// Package options provides data structures and functions for configuring
// the store. It defines the parameters that control its on-disk layout,
// segment rotation threshold, and background compaction cadence.
package options

import (
	"strings"
	"time"
)

// Options defines the configuration parameters for the store engine.
type Options struct {
	// Specifies the directory where segment files live.
	//
	// Default: "/var/lib/ignitedb"
	DataDir string `json:"dataDir"`

	// Defines the maximum size a segment can grow to before the engine
	// rotates to a new active segment. Larger segments mean fewer files
	// but slower compaction and recovery.
	//
	//  - Default: 1GB
	//  - Maximum: 4GB
	//  - Minimum: 512MB
	SegmentSize uint64 `json:"segmentSize"`

	// Defines how often the background compaction goroutine runs to merge
	// old segments and reclaim space occupied by overwritten and deleted
	// keys. A zero value disables the background goroutine entirely —
	// compaction then only runs when Compact is called directly.
	//
	// Default: 0 (disabled)
	CompactInterval time.Duration `json:"compactInterval"`

	// SyncOnWrite forces an fsync of the active segment after every write,
	// trading throughput for a durability guarantee that a crash never
	// loses an acknowledged write. When false, the engine relies on the
	// operating system to flush dirty pages on its own schedule.
	//
	// Default: false
	SyncOnWrite bool `json:"syncOnWrite"`
}

// OptionFunc is a function type that modifies the store's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies the package's default configuration values.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.DataDir = opts.DataDir
		o.SegmentSize = opts.SegmentSize
		o.CompactInterval = opts.CompactInterval
		o.SyncOnWrite = opts.SyncOnWrite
	}
}

// WithDataDir sets the directory the engine stores segments in.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithCompactInterval sets how often the background compaction goroutine
// runs. Passing 0 disables it.
func WithCompactInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval >= 0 {
			o.CompactInterval = interval
		}
	}
}

// WithSegmentSize sets the maximum size of the active segment file before
// rotation.
func WithSegmentSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size >= MinSegmentSize && size <= MaxSegmentSize {
			o.SegmentSize = size
		}
	}
}

// WithSyncOnWrite enables or disables fsync after every append.
func WithSyncOnWrite(sync bool) OptionFunc {
	return func(o *Options) {
		o.SyncOnWrite = sync
	}
}

package options

const (
	// Specifies the default directory where the store keeps its segment
	// files. If no other directory is specified during initialization,
	// this path will be used.
	DefaultDataDir = "/var/lib/ignitedb"

	// Defines the default time duration between automatic compaction
	// operations. Zero means the background compaction goroutine is
	// disabled by default; callers opt in with WithCompactInterval.
	DefaultCompactInterval = 0

	// Represents the minimum allowed size for a segment file in bytes (512MB).
	MinSegmentSize uint64 = 512 * 1024 * 1024

	// Represents the maximum allowed size for a segment file in bytes (4GB).
	MaxSegmentSize uint64 = 4 * 1024 * 1024 * 1024

	// Specifies the default target size for a new segment file in bytes (1GB).
	DefaultSegmentSize uint64 = 1 * 1024 * 1024 * 1024

	// DefaultSyncOnWrite controls whether every append is followed by an
	// fsync. Disabled by default; relies on the OS to flush dirty pages.
	DefaultSyncOnWrite = false
)

// Holds the default configuration settings for a store instance.
var defaultOptions = Options{
	DataDir:         DefaultDataDir,
	SegmentSize:     DefaultSegmentSize,
	CompactInterval: DefaultCompactInterval,
	SyncOnWrite:     DefaultSyncOnWrite,
}

func NewDefaultOptions() Options {
	return defaultOptions
}

// Package ignite provides a high-performance key/value data store designed
// for fast read and write operations, inspired by Bitcask. It combines an
// in-memory hash table (the index) with an append-only log structure on
// disk to achieve high throughput: every write is a single sequential
// append, and every read is at most one positional disk access away.
package ignite

import (
	"context"
	"os"

	"github.com/iamNilotpal/ignite/internal/compaction"
	"github.com/iamNilotpal/ignite/internal/engine"
	"github.com/iamNilotpal/ignite/pkg/logger"
	"github.com/iamNilotpal/ignite/pkg/options"
)

// Instance is the primary entry point for interacting with the store,
// providing methods for setting, getting, removing, and compacting
// key/value pairs.
type Instance struct {
	engine  *engine.Engine
	options *options.Options
}

// NewInstance opens (or creates) a store at the configured data directory
// and returns an Instance ready for use.
func NewInstance(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)
	if os.Getenv("IGNITE_DEV_LOGS") != "" {
		// Terminal-facing front ends (the CLI) set this to trade the
		// production JSON encoder for development's colorized, human-readable
		// one; nothing in the engine cares which encoder produced the entry.
		log = logger.NewDevelopment(service)
	}

	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	eng, err := engine.New(ctx, &engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts}, nil
}

// Set stores a key/value pair in the database. If the key already exists,
// its value is overwritten. The write is durable once Set returns: the
// record has been appended to the active segment.
func (i *Instance) Set(ctx context.Context, key string, value []byte) error {
	return i.engine.Set(ctx, key, value)
}

// Get retrieves the value associated with the given key. The bool return
// reports whether the key was found.
func (i *Instance) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return i.engine.Get(ctx, key)
}

// Remove deletes a key/value pair from the database by appending a
// tombstone record. It returns engine.ErrKeyNotFound if the key has no live
// entry.
func (i *Instance) Remove(ctx context.Context, key string) error {
	return i.engine.Remove(ctx, key)
}

// Compact runs one merge pass over the store's segments, reclaiming the
// space held by keys that have since been overwritten or deleted.
func (i *Instance) Compact(ctx context.Context) (compaction.Result, error) {
	return i.engine.Compact(ctx)
}

// Len reports how many live keys the store currently holds.
func (i *Instance) Len() int {
	return i.engine.Len()
}

// Close gracefully shuts down the store instance, stopping any background
// compaction goroutine and closing every open segment file.
func (i *Instance) Close(ctx context.Context) error {
	return i.engine.Close()
}

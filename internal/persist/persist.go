// Package persist provides the durable-storage backends a task collection is
// flushed to. A backend stores exactly one encoded document and replaces it
// whole on every write.
package persist

import (
	"context"
	"fmt"
)

// Backend is a durable home for the encoded task document.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Read returns the stored document, or nil with no error when nothing
	// has been stored yet.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored document.
	Write(ctx context.Context, data []byte) error

	// Close releases any handle held by the backend.
	Close() error
}

// Quarantiner is implemented by backends that can set an unreadable document
// aside so the next write does not destroy it.
type Quarantiner interface {
	Quarantine(ctx context.Context) (string, error)
}

// Journal is implemented by backends that keep a history of writes.
type Journal interface {
	Flushes(ctx context.Context, limit int) ([]Flush, error)
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options configure Open.
type Options struct {
	Driver    string
	Path      string // file and sqlite
	RedisAddr string
	RedisKey  string
}

// Open builds the backend selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFile(opts.Path), nil
	case DriverSQLite:
		return NewSQLite(opts.Path)
	case DriverRedis:
		return NewRedis(ctx, opts.RedisAddr, opts.RedisKey)
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}

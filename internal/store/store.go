// Package store persists ingested records behind a small common
// interface with in-memory and SQLite-backed implementations.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/run-harness/internal/artifact"
)

// Store is the persistence interface for ingested records.
type Store interface {
	// Save replaces the stored record set.
	Save(ctx context.Context, records []artifact.Record) error
	// Load returns the stored records; empty slice when nothing saved.
	Load(ctx context.Context) ([]artifact.Record, error)
	// Close releases any underlying resources.
	Close() error
}

// Open builds a Store from a driver name: "memory" or "sqlite" (which
// requires a path).
func Open(driver, path string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		if path == "" {
			return nil, eris.New("store: sqlite driver requires a path")
		}
		return NewSQLite(path)
	default:
		return nil, eris.Errorf("store: unknown driver: %s", driver)
	}
}

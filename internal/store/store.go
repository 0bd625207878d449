// ABOUTME: BadgerDB configuration and open helper shared by the hashed stores
// ABOUTME: Supports on-disk and in-memory (test) operation

package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path to the database directory. Required unless InMemory is true.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites enables synchronous writes (slower but safer).
	SyncWrites bool

	// Logger for BadgerDB operations.
	Logger badger.Logger
}

// Open opens a BadgerDB instance with the given configuration.
func Open(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	if cfg.SyncWrites {
		opts = opts.WithSyncWrites(true)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil) // Disable logging by default.
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}

	return db, nil
}

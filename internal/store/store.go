package store

import (
	"context"
	"errors"
	"fmt"

	"jobs-etl/internal/config"
	"jobs-etl/internal/record"
)

// ErrNotFound is returned by FindByURL when no row carries the given URL.
// It is an expected outcome, not a failure.
var ErrNotFound = errors.New("record not found")

// Store defines what the uploader needs from a persisted table of job
// records: a key-existence oracle and an append target.
//
// Implementations are not required to enforce uniqueness on the URL; the
// uploader checks before every insert. They are also not required to be safe
// for concurrent use since the uploader calls them sequentially.
type Store interface {
	// FindByURL returns the stored record whose job_url equals url, or
	// ErrNotFound when there is none.
	FindByURL(ctx context.Context, url string) (*record.Record, error)
	// Insert appends rec as a new row.
	Insert(ctx context.Context, rec record.Record) error
}

// Open builds the Store selected by the storage configuration. The returned
// close function releases any underlying connection and is never nil.
func Open(cfg config.StorageConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case "sqlite":
		s, err := OpenSQL("sqlite", cfg.SQLite.Path, cfg.Table)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "libsql":
		s, err := OpenSQL("libsql", cfg.LibSQL.URL, cfg.Table)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "supabase":
		return NewPostgREST(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Table), noop, nil
	case "memory":
		return NewMemory(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

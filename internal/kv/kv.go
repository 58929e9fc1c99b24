// Package kv defines the byte-oriented key-value store the content layer
// persists into, and its backends.
//
// Backends:
//   - Memory: process-local map, for tests and throwaway runs
//   - File: one file per key in a directory, atomic replace on write
//   - SQL: a single table through sqlx (sqlite or postgres)
//   - Mongo: a single collection keyed by _id
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a minimal key-value byte store.
//
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Name describes the backend for diagnostics.
	Name() string
	Close() error
}

// Open opens a backend by name.
//
// backend is one of "memory", "file", "sqlite", "postgres" or "mongo". For
// "file" dsn is a directory; for "mongo" dsn is a URI and the database is
// "impa".
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(dsn)
	case "sqlite", "postgres":
		return NewSQL(ctx, backend, dsn)
	case "mongo", "mongodb":
		return NewMongo(ctx, dsn, "impa")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

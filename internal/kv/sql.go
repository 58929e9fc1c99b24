package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	// Database drivers.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQL stores values in a single table through database/sql.
type SQL struct {
	db     *sqlx.DB
	driver string
}

type kvRow struct {
	Name  string `db:"name"`
	Value []byte `db:"value"`
}

// NewSQL connects with driver ("sqlite" or "postgres") and creates the table.
//
// Example sqlite DSN: "file:impa.db?_pragma=journal_mode(WAL)".
func NewSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// sqlite serializes writers anyway; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	s := &SQL{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate(ctx context.Context) error {
	blob := "BLOB"
	if s.driver == "postgres" {
		blob = "BYTEA"
	}
	stmt := `CREATE TABLE IF NOT EXISTS kv (
		name TEXT PRIMARY KEY,
		value ` + blob + ` NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var row kvRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT name, value FROM kv WHERE name = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return row.Value, nil
}

// Set implements Store.
func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	q := s.db.Rebind(`INSERT INTO kv (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`)
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM kv WHERE name = ?`), key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in order.
func (s *SQL) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, `SELECT name FROM kv ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// Name implements Store.
func (s *SQL) Name() string { return s.driver }

// Close implements Store.
func (s *SQL) Close() error { return s.db.Close() }

// Package jsonldb implements small append-mostly tables stored as JSON Lines.
//
// Rows are cached in memory; the file is the source of truth on startup.
// Contact messages, push subscriptions, revoked tokens and the login audit are
// kept this way.
package jsonldb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// maxLineSize bounds a single row.
const maxLineSize = 1 << 20

// Table is a JSONL file of rows of type T.
//
// An empty path keeps the rows in memory only.
type Table[T any] struct {
	path string

	mu   sync.RWMutex
	rows []T
}

// NewTable opens the table at path, creating its directory, and loads every
// row.
func NewTable[T any](path string) (*Table[T], error) {
	t := &Table[T]{path: path}
	if path == "" {
		return t, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table[T]) load() error {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(b, &row); err != nil {
			return fmt.Errorf("%s:%d: failed to decode row: %w", t.path, line, err)
		}
		t.rows = append(t.rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	return nil
}

// All returns a copy of every row in insertion order.
func (t *Table[T]) All() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rows)
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Find returns the first row for which match is true.
func (t *Table[T]) Find(match func(*T) bool) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.rows {
		if match(&t.rows[i]) {
			return t.rows[i], true
		}
	}
	var zero T
	return zero, false
}

// Append persists row and adds it to the cache.
func (t *Table[T]) Append(row T) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.path != "" {
		f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open table file for append: %w", err)
		}
		_, err = f.Write(append(data, '\n'))
		if err2 := f.Close(); err == nil {
			err = err2
		}
		if err != nil {
			return fmt.Errorf("failed to append row to %s: %w", t.path, err)
		}
	}
	t.rows = append(t.rows, row)
	return nil
}

// DeleteFunc removes the rows for which del is true and rewrites the file.
// It returns the number of rows removed.
func (t *Table[T]) DeleteFunc(del func(*T) bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := make([]T, 0, len(t.rows))
	for i := range t.rows {
		if !del(&t.rows[i]) {
			kept = append(kept, t.rows[i])
		}
	}
	n := len(t.rows) - len(kept)
	if n == 0 {
		return 0, nil
	}
	if err := t.writeLocked(kept); err != nil {
		return 0, err
	}
	t.rows = kept
	return n, nil
}

// writeLocked atomically replaces the file content with rows.
func (t *Table[T]) writeLocked(rows []T) (err error) {
	if t.path == "" {
		return nil
	}
	f, err := os.CreateTemp(filepath.Dir(t.path), "."+filepath.Base(t.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(f.Name()))
		}
	}()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush %s: %w", t.path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), t.path)
}

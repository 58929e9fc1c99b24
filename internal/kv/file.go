package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const fileExt = ".json"

// File stores each key as <dir>/<key>.json.
//
// Writes go to a temp file in the same directory and are renamed into place,
// so a reader never observes a partial value.
type File struct {
	dir string
	mu  sync.Mutex

	// lastWrite tracks our own writes so Watch can ignore them.
	lastWrite map[string]time.Time
}

// NewFile creates dir if needed and returns a File store rooted there.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("file store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &File{dir: dir, lastWrite: make(map[string]time.Time)}, nil
}

// Dir returns the storage directory.
func (f *File) Dir() string { return f.dir }

// Path returns the file backing key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, key+fileExt)
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// Get implements Store.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.Path(key)) //nolint:gosec // G304: key is validated
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return b, nil
}

// Set implements Store.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return errors.Join(fmt.Errorf("failed to write %s: %w", key, err), os.Remove(tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, f.Path(key)); err != nil {
		return errors.Join(fmt.Errorf("failed to rename %s into place: %w", key, err), os.Remove(tmpPath))
	}
	f.lastWrite[key] = time.Now()
	return nil
}

// Delete implements Store.
func (f *File) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	f.lastWrite[key] = time.Now()
	return nil
}

// Name implements Store.
func (f *File) Name() string { return "file" }

// Close implements Store.
func (f *File) Close() error { return nil }

// ownWrite reports whether key was written by this process within the last
// second.
func (f *File) ownWrite(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.lastWrite[key]
	return ok && time.Since(t) < time.Second
}

// Watch calls fn with the key whenever a value file is changed by another
// process. It returns once the watcher is installed; the watch stops when ctx
// is done.
func (f *File) Watch(ctx context.Context, fn func(key string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(f.dir); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				key := strings.TrimSuffix(name, fileExt)
				if f.ownWrite(key) {
					continue
				}
				fn(key)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching storage directory", "err", err)
			}
		}
	}()
	return nil
}

package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File is a Store kept in a single JSON object file. Every write rewrites
// the file atomically, so a crash leaves either the old or the new content.
type File struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
	closed bool
	// loadErr is the parse error of the existing file. Reads report it
	// until a successful write replaces the file.
	loadErr error
}

// OpenFile opens (or creates on first write) the JSON file at path. A file
// that does not parse does not fail the open: reads return the parse error
// and the next write overwrites it.
func OpenFile(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("kvstore: file path is required")
	}
	f := &File{
		path:   filepath.Clean(path),
		values: make(map[string]string),
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("kvstore: read %s: %w", f.path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &f.values); err != nil {
			f.values = make(map[string]string)
			f.loadErr = fmt.Errorf("kvstore: parse %s: %w", f.path, err)
		}
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Get returns the value stored under key.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return "", false, ErrClosed
	}
	if f.loadErr != nil {
		return "", false, f.loadErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

// Set stores value under key and rewrites the file.
func (f *File) Set(ctx context.Context, key, value string) error {
	return f.MultiSet(ctx, []Pair{{Key: key, Value: value}})
}

// MultiGet returns the values for keys in request order.
func (f *File) MultiGet(ctx context.Context, keys []string) ([]Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]Pair, len(keys))
	for i, k := range keys {
		v, ok := f.values[k]
		out[i] = Pair{Key: k, Value: v, Found: ok}
	}
	return out, nil
}

// MultiSet stores all pairs with one file rewrite. On write failure the
// in-memory view is rolled back.
func (f *File) MultiSet(ctx context.Context, pairs []Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	next := make(map[string]string, len(f.values)+len(pairs))
	for k, v := range f.values {
		next[k] = v
	}
	for _, p := range pairs {
		next[p.Key] = p.Value
	}
	if err := f.saveLocked(next); err != nil {
		return err
	}
	f.values = next
	f.loadErr = nil
	return nil
}

// Close marks the store closed.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// saveLocked writes values to disk. Must be called with f.mu held.
func (f *File) saveLocked(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("kvstore: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("kvstore: create dir: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tmpFile := f.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("kvstore: write %s: %w", tmpFile, err)
	}
	if err := os.Rename(tmpFile, f.path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("kvstore: rename %s: %w", tmpFile, err)
	}
	return nil
}

// Ensure File implements Store.
var _ Store = (*File)(nil)

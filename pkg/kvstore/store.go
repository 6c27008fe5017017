package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("kvstore: unknown driver")

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("kvstore: store is closed")

// Pair is a single key/value item. Found is set by MultiGet and reports
// whether the key existed; it is ignored by MultiSet.
type Pair struct {
	Key   string
	Value string
	Found bool
}

// Store is a string key/value persistence backend.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// MultiGet returns one Pair per requested key, in request order.
	MultiGet(ctx context.Context, keys []string) ([]Pair, error)

	// MultiSet stores all pairs. Backends apply the pairs as a unit where
	// the medium allows it.
	MultiSet(ctx context.Context, pairs []Pair) error

	// Close releases resources held by the backend.
	Close() error
}

// Open creates a backend for driver. path is ignored by the memory driver.
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFile:
		return OpenFile(path)
	case DriverSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

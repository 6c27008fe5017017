package apilog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/getmockd/apidiag/pkg/kvstore"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seqIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("log-%03d", n)
	}
}

// newTestStore returns an enabled store over a memory backend.
func newTestStore(t *testing.T, opts ...Option) (*Store, *kvstore.Memory) {
	t.Helper()
	kv := kvstore.NewMemory()
	s := New(kv, append([]Option{WithIDGenerator(seqIDs())}, opts...)...)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	s.SetEnabled(true)
	return s, kv
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

var errBackend = errors.New("backend unavailable")

// failingKV fails reads and/or writes.
type failingKV struct {
	*kvstore.Memory
	failReads  bool
	failWrites bool
}

func (f *failingKV) MultiGet(ctx context.Context, keys []string) ([]kvstore.Pair, error) {
	if f.failReads {
		return nil, errBackend
	}
	return f.Memory.MultiGet(ctx, keys)
}

func (f *failingKV) MultiSet(ctx context.Context, pairs []kvstore.Pair) error {
	if f.failWrites {
		return errBackend
	}
	return f.Memory.MultiSet(ctx, pairs)
}

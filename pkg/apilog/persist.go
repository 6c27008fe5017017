package apilog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/getmockd/apidiag/pkg/kvstore"
)

// writeTimeout bounds a single snapshot write.
const writeTimeout = 10 * time.Second

// load reads the enabled flag and entry list. Missing keys are not errors:
// the flag falls back to defaultEnabled and the list to empty.
func load(ctx context.Context, kv kvstore.Store, defaultEnabled bool) (bool, []*Entry, error) {
	pairs, err := kv.MultiGet(ctx, []string{KeyEnabled, KeyLogs})
	if err != nil {
		return false, nil, fmt.Errorf("read: %w", err)
	}
	if len(pairs) != 2 {
		return false, nil, fmt.Errorf("read: expected 2 values, got %d", len(pairs))
	}

	enabled := defaultEnabled
	if p := pairs[0]; p.Found {
		enabled, err = strconv.ParseBool(p.Value)
		if err != nil {
			return false, nil, fmt.Errorf("parse %s: %w", KeyEnabled, err)
		}
	}

	var entries []*Entry
	if p := pairs[1]; p.Found && p.Value != "" {
		if err := json.Unmarshal([]byte(p.Value), &entries); err != nil {
			return false, nil, fmt.Errorf("parse %s: %w", KeyLogs, err)
		}
	}
	return enabled, entries, nil
}

// snapshot is the full persisted state at one version.
type snapshot struct {
	version uint64
	enabled bool
	entries []Entry
}

// snapshotWriter is the single goroutine that writes snapshots to the
// backend. Only the latest pending snapshot is kept; older ones are dropped
// unwritten.
type snapshotWriter struct {
	kv  kvstore.Store
	log *slog.Logger

	mu      sync.Mutex
	pending *snapshot
	written uint64
	lastErr error
	changed chan struct{} // closed and replaced after every write
	closed  bool

	wake    chan struct{}
	closing chan struct{}
	done    chan struct{}
}

func newSnapshotWriter(kv kvstore.Store, log *slog.Logger) *snapshotWriter {
	w := &snapshotWriter{
		kv:      kv,
		log:     log,
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue replaces the pending snapshot if snap is newer.
func (w *snapshotWriter) enqueue(snap snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.log.Debug("snapshot dropped, writer closed", "version", snap.version)
		return
	}
	if w.pending == nil || snap.version > w.pending.version {
		w.pending = &snap
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *snapshotWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.writePending()
		case <-w.closing:
			w.writePending()
			return
		}
	}
}

func (w *snapshotWriter) writePending() {
	w.mu.Lock()
	snap := w.pending
	w.pending = nil
	w.mu.Unlock()
	if snap == nil {
		return
	}

	err := w.write(snap)
	if err != nil {
		w.log.Warn("failed to persist api logs", "version", snap.version, "error", err)
	}

	w.mu.Lock()
	if snap.version > w.written {
		w.written = snap.version
		w.lastErr = err
	}
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()
}

func (w *snapshotWriter) write(snap *snapshot) error {
	data, err := json.Marshal(snap.entries)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return w.kv.MultiSet(ctx, []kvstore.Pair{
		{Key: KeyEnabled, Value: strconv.FormatBool(snap.enabled)},
		{Key: KeyLogs, Value: string(data)},
	})
}

// flush waits until version has been written.
func (w *snapshotWriter) flush(ctx context.Context, version uint64) error {
	for {
		w.mu.Lock()
		if w.written >= version {
			err := w.lastErr
			w.mu.Unlock()
			return err
		}
		if w.closed && w.pending == nil && isClosed(w.done) {
			w.mu.Unlock()
			return kvstore.ErrClosed
		}
		ch := w.changed
		w.mu.Unlock()

		select {
		case <-ch:
		case <-w.done:
			// Writer exited; loop once more to pick up its final write.
			w.mu.Lock()
			reached := w.written >= version
			err := w.lastErr
			w.mu.Unlock()
			if reached {
				return err
			}
			return kvstore.ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close writes any pending snapshot and stops the goroutine.
func (w *snapshotWriter) close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.closing)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

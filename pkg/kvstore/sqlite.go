package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLite is a Store backed by a kv table in a SQLite database.
type SQLite struct {
	mu     sync.RWMutex // guards closed; held for reading during every query
	sqlDB  *sql.DB
	closed bool
}

// OpenSQLite opens the database at path and creates the kv table.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("kvstore: sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("kvstore: ping sqlite db: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("kvstore: create schema: %w", err)
	}
	return &SQLite{sqlDB: sqlDB}, nil
}

// Get returns the value stored under key.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	return s.getLocked(ctx, key)
}

func (s *SQLite) getLocked(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	return s.MultiSet(ctx, []Pair{{Key: key, Value: value}})
}

// MultiGet returns the values for keys in request order.
func (s *SQLite) MultiGet(ctx context.Context, keys []string) ([]Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]Pair, len(keys))
	for i, k := range keys {
		v, ok, err := s.getLocked(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = Pair{Key: k, Value: v, Found: ok}
	}
	return out, nil
}

// MultiSet upserts all pairs in one transaction.
func (s *SQLite) MultiSet(ctx context.Context, pairs []Pair) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kvstore: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("kvstore: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err = stmt.ExecContext(ctx, p.Key, p.Value); err != nil {
			return fmt.Errorf("kvstore: set %q: %w", p.Key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("kvstore: commit: %w", err)
	}
	return nil
}

// Close waits for in-flight calls and closes the database handle. Calls
// after Close return ErrClosed.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sqlDB.Close()
}

// Ensure SQLite implements Store.
var _ Store = (*SQLite)(nil)

// Package kvstore provides the string key/value persistence backends used to
// mirror the API capture log across process restarts.
//
// Key types:
//
//   - Store: the backend contract (Get, Set, MultiGet, MultiSet, Close)
//   - Memory: thread-safe in-memory backend, used in tests and when
//     persistence is disabled
//   - File: a single JSON object file written atomically (temp file + rename)
//   - SQLite: a kv table in a SQLite database (modernc.org/sqlite, no cgo)
//
// Open selects a backend by driver name, which is how configuration wires a
// backend without importing a concrete type.
package kvstore

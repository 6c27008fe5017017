// Package apilog captures outbound API calls and their retry attempts into a
// bounded, redacted, persisted history for debugging.
//
// This package serves developers who need to see what the application sent
// to its API, how many times it retried and what came back. It is distinct
// from operational logging (which uses log/slog).
//
// # Capture API
//
// The HTTP client drives an Entry through its lifecycle with three calls:
//
//	id, ok := store.Begin(req, retryHint)       // entry created, newest first
//	store.RecordAttempt(id, 1, outcome)         // once per try
//	store.Finish(id, apilog.ResponseOutcome(r)) // exactly once
//
// All three are silent no-ops when capture is disabled or the id is unknown
// (an entry may have been evicted). Redaction (see package redact) is applied
// inside these calls, so nothing unredacted is ever held or persisted.
//
// # Store
//
// Store keeps at most MaxLogs entries, most recent first, evicting the
// oldest on insert. Every mutation hands a full snapshot to a single writer
// goroutine that mirrors it to a kvstore.Store. Intermediate snapshots may
// be skipped; the latest one always lands. Call Initialize once at startup
// to load the previous state, and Close at shutdown to flush.
//
// Readers get deep copies (Logs, Get) and can never observe an entry
// mid-mutation.
package apilog

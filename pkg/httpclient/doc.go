// Package httpclient is a small JSON-friendly HTTP client with retries that
// reports every request to an apilog.Recorder.
//
// Each call to Do opens one capture entry, records one attempt per try (with
// that try's own start time, so backoff waits are not counted) and finishes
// the entry exactly once. Transport errors, 429 and 5xx responses are
// retried with exponential backoff; other non-2xx responses fail at once
// with a *StatusError.
package httpclient

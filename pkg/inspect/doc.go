// Package inspect derives presentation views from captured API log entries.
//
// Everything here is a pure read over apilog.Entry values: replayable curl
// commands, status classes, attempt timelines, list summaries, filters,
// JSONPath extraction and JSON/HAR export. None of it mutates the store, and
// malformed entries (missing fields, non-JSON bodies) degrade to a
// best-effort representation instead of failing.
package inspect

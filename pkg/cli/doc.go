// Package cli implements the apidiag command line.
//
// Commands work directly on the configured storage backend, so a capture
// made by `apidiag fetch` in one process is visible to `apidiag logs` in the
// next. `apidiag serve` exposes the same data over the viewer HTTP API.
package cli

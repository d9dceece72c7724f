// Package state persists the worker's opaque JSON blob (an object unless
// the caller stores something else).
//
// It currently supports:
//   - "file": a single JSON document file (default)
//   - "sqlite": the same JSON document kept in a one-row SQLite table
//
// The blob is loaded once on worker start and written back on stop.
package state

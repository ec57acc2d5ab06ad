// Package monitor implements the CAPIO-CL commit monitor: a
// distributed store of "this file is committed" facts, reachable
// through pluggable backends and composed by an Aggregator.
package monitor

// Backend is the capability set every commit backend implements:
// {is_committed, set_committed}. Variants are Filesystem and
// Multicast; no class hierarchy is required (spec.md §4.3, §9).
type Backend interface {
	// IsCommitted reports whether path has been committed.
	IsCommitted(path string) bool
	// SetCommitted publishes that path is committed.
	SetCommitted(path string)
	// Close releases any resources the backend holds (sockets,
	// listener goroutines). Backends with no background state may
	// implement this as a no-op.
	Close() error
}

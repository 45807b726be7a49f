// Package progress aggregates per-thread pipeline activity into a single
// snapshot: run state, file counters, retry totals, and per-slot liveness.
// Staleness is always derived from timestamps at read time rather than
// stored, so a reader never sees a stale flag that outlived its cause.
package progress

// Package session persists booth sessions and enforces the capture,
// selection, processing, and result workflow. The SQLite-backed store is the
// single source of truth for session state; every status transition that
// matters for correctness (queueing, claiming, retrying, reclaiming) is a
// guarded UPDATE so concurrent callers cannot race a session into an
// inconsistent state.
package session

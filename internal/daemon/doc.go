// Package daemon coordinates the long-running membooth process.
//
// It wires configuration, session storage, the workflow manager, and the
// kiosk HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon exposes session maintenance helpers for the
// CLI, requeues sessions stranded by a previous run on startup, and serves
// the capture, selection, generation, and result endpoints the frontend
// drives a visitor through.
//
// Keep orchestration logic here: generation itself lives in the generator
// package while the daemon focuses on startup, shutdown, and HTTP handling.
package daemon

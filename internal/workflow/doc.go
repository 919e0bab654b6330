// Package workflow advances booth sessions through the generation stage.
//
// The Manager polls for queued sessions, claims each one with a guarded
// status transition so a session is generated at most once per cycle, and
// feeds it into the generation stage handler while capturing progress and
// failure metadata. Heartbeats mark in-flight generations as alive; sessions
// whose heartbeats stop are failed as interrupted and wait for the visitor
// or operator to retry.
//
// It also aggregates session stats and stage health for the status surfaces.
package workflow

// Package notifications delivers booth events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Completion and error notifications are gated separately so an
// operator can subscribe to failures without the per-session noise.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications

// Package logging builds the slog loggers used across the booth daemon and
// CLI, with a console handler for interactive use and JSON for ingestion.
// Standardized field names keep session, stage, and correlation identifiers
// consistent between log lines and notifications.
package logging

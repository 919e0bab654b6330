// Package api defines wire-format types and converters for the HTTP and IPC
// layer. It translates internal session models into transport-friendly DTOs
// so the kiosk frontend and CLI never couple to internal types.
//
// DTOs use camelCase JSON tags for JavaScript consumers. Internal enums
// (session.Status, session.Step) are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds. Generated assets are never
// embedded in DTOs; the result and download endpoints stream them instead.
package api

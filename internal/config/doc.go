// Package config loads, normalizes, and validates the TOML configuration
// shared by the booth daemon and CLI.
package config

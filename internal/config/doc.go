// Package config loads, normalizes, and validates drafter configuration.
//
// Configuration is TOML with one section per subsystem: paths, provider
// connection, reference key material, translation policy (retry, backoff,
// polling, circuit breaker), metadata scoring thresholds, notifications, and
// logging. Secrets may be supplied through environment variables (optionally
// loaded from a .env file by the CLI) and take precedence over file values.
package config

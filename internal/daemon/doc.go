// Package daemon hosts the long-running drafter process: it enforces
// single-instance execution with a file lock, runs the workflow manager,
// and serves the webhook and status HTTP endpoints.
package daemon

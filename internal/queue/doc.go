// Package queue is the authoritative registry for translation jobs.
//
// Jobs are persisted in SQLite, one row per job. All state changes funnel
// through compare-and-set transitions keyed on the per-job update sequence,
// so concurrent pollers and webhook deliveries for the same job serialize
// here and progress never moves backwards while a job is active. Pollers
// coordinate through short-lived leases recorded on the row; a stale lease is
// reclaimed after a grace period rather than held forever by a crashed
// worker.
package queue

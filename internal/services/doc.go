// Package services provides shared error classification and context
// annotation helpers used across translation engine components.
//
// Errors are tagged with sentinel markers so callers can decide whether a
// failure is retryable, a validation problem that should terminalize the job
// immediately, or a boundary rejection that must never mutate a job.
package services

// Package provider is the HTTP client for the remote conversion service.
//
// The service exposes a model-derivative style contract: a translation is
// submitted against an opaque urn, progress is reported as "NN% complete"
// strings, and finished translations publish a manifest describing the
// derivative outputs plus a separate object hierarchy per model view.
// Responses are classified into validation, rejected, and transient errors
// so the retry controller can decide what consumes budget.
package provider

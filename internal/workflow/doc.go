// Package workflow coordinates the translation engine's background
// lanes: dispatching pending jobs to the provider, polling in-flight
// translations, extracting metadata from finished ones, and sweeping
// stale job leases. The manager owns the goroutines; Start launches
// them and Stop drains them.
package workflow

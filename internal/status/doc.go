// Package status tracks in-flight translations through both channels:
// a deadline-driven poller backed by a bounded worker pool, and a
// webhook endpoint that verifies signed provider callbacks. Both paths
// apply updates through the queue's transition machinery, so stale or
// out-of-order deliveries degrade to no-ops.
package status

// Package notifications emits translation lifecycle events.
//
// Machine consumers get typed JSON events over NATS (job.updated on
// every applied transition, metadata.extracted after extraction); each
// event carries the job's monotone sequence number so consumers can
// dedup at-least-once deliveries. Human-facing terminal and error
// notifications go to ntfy. Both transports degrade to no-ops when
// unconfigured; delivery failures are logged and never block the
// workflow.
package notifications

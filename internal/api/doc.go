// Package api is the engine facade collaborators program against:
// starting translations, reading status with a progress-derived ETA,
// fetching manifests and quality metadata, retrying and cancelling
// jobs, and minting signed reference tokens. It composes the workflow
// manager's components without adding policy of its own.
package api

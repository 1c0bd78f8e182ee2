package logging

// Standardized attribute keys. Keep these stable; dashboards and log
// filters key on them.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldRequestID = "request_id"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldStatus    = "status"
	FieldStage     = "stage"
	FieldProgress  = "progress"
	FieldAttempt   = "attempt"
	FieldSequence  = "sequence"
	FieldReference = "reference"
	FieldDuration  = "duration"
)

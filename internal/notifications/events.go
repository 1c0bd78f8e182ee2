package notifications

import (
	"time"

	"github.com/google/uuid"

	"drafter/internal/metadata"
	"drafter/internal/queue"
)

// EventType enumerates the published event kinds.
type EventType string

const (
	EventJobUpdated        EventType = "job.updated"
	EventMetadataExtracted EventType = "metadata.extracted"
)

// Event is the wire form of one lifecycle notification. Sequence is the
// job's per-row update counter and increases monotonically, so a
// consumer seeing duplicates keeps the highest sequence per job.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	JobID         string    `json:"jobId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Sequence      int64     `json:"sequence"`
	OccurredAt    time.Time `json:"occurredAt"`

	Status   string  `json:"status,omitempty"`
	Progress float64 `json:"progress"`
	Stage    string  `json:"stage,omitempty"`
	Message  string  `json:"message,omitempty"`

	ErrorKind    string `json:"errorKind,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	// OverallScore is set on metadata.extracted events.
	OverallScore *float64 `json:"overallScore,omitempty"`
}

// JobUpdatedEvent builds the event for an applied job transition.
func JobUpdatedEvent(job *queue.Job) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          EventJobUpdated,
		JobID:         job.JobID,
		CorrelationID: job.CorrelationID,
		Sequence:      job.Sequence,
		OccurredAt:    time.Now().UTC(),
		Status:        string(job.Status),
		Progress:      job.Progress,
		Stage:         job.Stage,
		Message:       job.ProgressMessage,
		ErrorKind:     job.ErrorKind,
		ErrorMessage:  job.ErrorMessage,
	}
}

// MetadataExtractedEvent builds the event for a completed extraction.
func MetadataExtractedEvent(job *queue.Job, record *metadata.Record) Event {
	score := record.Score.Overall
	return Event{
		ID:            uuid.NewString(),
		Type:          EventMetadataExtracted,
		JobID:         job.JobID,
		CorrelationID: job.CorrelationID,
		Sequence:      job.Sequence,
		OccurredAt:    time.Now().UTC(),
		Status:        string(job.Status),
		Progress:      job.Progress,
		OverallScore:  &score,
	}
}

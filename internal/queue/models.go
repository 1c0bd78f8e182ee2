package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a translation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "inprogress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusSuccess,
	StatusFailed,
	StatusTimeout,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusSuccess:   {},
	StatusFailed:    {},
	StatusTimeout:   {},
	StatusCancelled: {},
}

// allowedTransitions encodes the state machine. Retry (failed|timeout →
// pending) and cancellation are included; everything else is rejected.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusInProgress: {},
		StatusFailed:     {},
		StatusTimeout:    {},
		StatusCancelled:  {},
	},
	StatusInProgress: {
		StatusInProgress: {},
		StatusSuccess:    {},
		StatusFailed:     {},
		StatusTimeout:    {},
		StatusCancelled:  {},
	},
	StatusFailed: {
		StatusPending: {},
	},
	StatusTimeout: {
		StatusPending: {},
	},
}

// QualityTier is the requested conversion quality.
type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
)

// Priority orders dispatch of pending jobs.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityNormal: 2,
	PriorityLow:    3,
}

// Job represents a translation job persisted in SQLite.
type Job struct {
	ID            int64
	JobID         string
	CorrelationID string
	ProviderJobID string
	// ReferenceCiphertext is the encrypted input reference. The plaintext
	// token is never stored.
	ReferenceCiphertext string
	OutputFormats       []string
	Quality             QualityTier
	Priority            Priority
	Category            string

	Status          Status
	Progress        float64
	ProgressMessage string
	Stage           string
	RetryCount      int
	Sequence        int64

	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastPolledAt   *time.Time
	NextPollAt     *time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	ManifestJSON string
	MetadataJSON string
	ErrorKind    string
	ErrorMessage string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseQuality converts a string into a known QualityTier.
func ParseQuality(value string) (QualityTier, bool) {
	switch QualityTier(strings.ToLower(strings.TrimSpace(value))) {
	case QualityLow:
		return QualityLow, true
	case QualityMedium:
		return QualityMedium, true
	case QualityHigh:
		return QualityHigh, true
	default:
		return "", false
	}
}

// ParsePriority converts a string into a known Priority.
func ParsePriority(value string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := priorityRank[p]; !ok {
		return "", false
	}
	return p, true
}

// IsTerminal reports whether a status admits no further transitions except
// a retry from failed or timeout.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	targets, ok := allowedTransitions[s]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

// IsTerminal reports whether the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// IsActive reports whether the job is still being tracked for progress.
func (j *Job) IsActive() bool {
	return !j.Status.IsTerminal()
}

// QueueTime returns how long the job waited before processing started.
func (j *Job) QueueTime() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	return j.StartedAt.Sub(j.CreatedAt)
}

// ProcessingTime returns how long the job spent in progress.
func (j *Job) ProcessingTime() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	InProgress int
	Succeeded  int
	Failed     int
	TimedOut   int
	Cancelled  int
}

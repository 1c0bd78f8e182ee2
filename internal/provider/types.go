package provider

import (
	"strconv"
	"strings"
)

// JobState is the remote service's view of a translation.
type JobState string

const (
	StatePending    JobState = "pending"
	StateInProgress JobState = "inprogress"
	StateSuccess    JobState = "success"
	StateFailed     JobState = "failed"
	StateTimeout    JobState = "timeout"
)

// OutputTarget describes one requested derivative output.
type OutputTarget struct {
	Type  string   `json:"type"`
	Views []string `json:"views,omitempty"`
}

// SubmitRequest is the translation submission body.
type SubmitRequest struct {
	URN     string         `json:"urn"`
	Outputs []OutputTarget `json:"outputs"`
	Quality string         `json:"quality"`
	// ExtractionOptions carries per-category extraction tuning.
	ExtractionOptions map[string]string `json:"extractionOptions,omitempty"`
	TimeoutSeconds    int               `json:"timeoutSeconds,omitempty"`
}

// SubmitResponse acknowledges a submission.
type SubmitResponse struct {
	Result string `json:"result"`
	JobID  string `json:"jobId"`
}

// StatusReport is the polled translation status.
type StatusReport struct {
	URN      string   `json:"urn"`
	State    JobState `json:"status"`
	Progress string   `json:"progress"`
	Message  string   `json:"message,omitempty"`
	Stage    string   `json:"stage,omitempty"`
}

// ProgressPercent parses the "NN% complete" progress convention. "complete"
// maps to 100; unparsable values map to 0.
func (r StatusReport) ProgressPercent() float64 {
	value := strings.ToLower(strings.TrimSpace(r.Progress))
	if value == "" {
		return 0
	}
	if value == "complete" || value == "completed" {
		return 100
	}
	if idx := strings.Index(value, "%"); idx > 0 {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value[:idx]), 64); err == nil {
			if parsed < 0 {
				return 0
			}
			if parsed > 100 {
				return 100
			}
			return parsed
		}
	}
	return 0
}

// Manifest is the read-mostly snapshot of a finished translation.
type Manifest struct {
	URN         string       `json:"urn"`
	Status      string       `json:"status"`
	Region      string       `json:"region,omitempty"`
	Derivatives []Derivative `json:"derivatives"`
	Thumbnails  []Thumbnail  `json:"thumbnails,omitempty"`
}

// Derivative is one produced output with its nested resource tree.
type Derivative struct {
	Name       string     `json:"name"`
	OutputType string     `json:"outputType"`
	Status     string     `json:"status"`
	SizeBytes  int64      `json:"size,omitempty"`
	Children   []Resource `json:"children,omitempty"`
}

// Resource is a node in a derivative's resource tree.
type Resource struct {
	GUID     string     `json:"guid"`
	Type     string     `json:"type"`
	Role     string     `json:"role,omitempty"`
	MIME     string     `json:"mime,omitempty"`
	Children []Resource `json:"children,omitempty"`
}

// Thumbnail describes a generated preview image.
type Thumbnail struct {
	GUID   string `json:"guid"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// HierarchyNode is one element of the object tree for a model view.
type HierarchyNode struct {
	ObjectID   int64             `json:"objectid"`
	Name       string            `json:"name"`
	Category   string            `json:"category,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Children   []HierarchyNode   `json:"objects,omitempty"`
}

// Hierarchy is the object tree returned for a finished translation.
type Hierarchy struct {
	URN     string          `json:"urn"`
	Objects []HierarchyNode `json:"objects"`
}

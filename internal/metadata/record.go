package metadata

import "time"

// Record is the stored extraction result for one translation.
type Record struct {
	JobID       string    `json:"jobId"`
	URN         string    `json:"urn"`
	ExtractedAt time.Time `json:"extractedAt"`

	Structure   Structure      `json:"structure"`
	Categories  map[string]int `json:"categories"`
	Disciplines map[string]int `json:"disciplines"`

	Score           Score    `json:"score"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Structure aggregates the shape of the translated model.
type Structure struct {
	TotalNodes        int   `json:"totalNodes"`
	LeafNodes         int   `json:"leafNodes"`
	IntermediateNodes int   `json:"intermediateNodes"`
	MaxDepth          int   `json:"maxDepth"`
	PropertyCount     int   `json:"propertyCount"`
	DerivativeCount   int   `json:"derivativeCount"`
	ThumbnailCount    int   `json:"thumbnailCount"`
	TotalSizeBytes    int64 `json:"totalSizeBytes"`
}

// Score holds the four quality sub-scores and their unweighted mean,
// each in [0, 1].
type Score struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Detail       float64 `json:"detail"`
	Organization float64 `json:"organization"`
	Overall      float64 `json:"overall"`
}

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"drafter/internal/config"
	"drafter/internal/logging"
	"drafter/internal/provider"
	"drafter/internal/queue"
	"drafter/internal/services"
)

// modelFetcher is the provider surface extraction needs.
type modelFetcher interface {
	FetchManifest(ctx context.Context, urn string) (*provider.Manifest, error)
	FetchHierarchy(ctx context.Context, urn string) (*provider.Hierarchy, error)
}

// Extractor walks finished translations into quality records.
type Extractor struct {
	cfg    *config.Config
	store  *queue.Store
	client modelFetcher
	logger *slog.Logger
}

func NewExtractor(cfg *config.Config, store *queue.Store, client modelFetcher, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		cfg:    cfg,
		store:  store,
		client: client,
		logger: logging.NewComponentLogger(logger, "metadata"),
	}
}

// Extract fetches the manifest and object hierarchy for a successful
// job, computes the quality record, and persists both on the job row.
// Running it again replaces the stored record wholesale.
func (e *Extractor) Extract(ctx context.Context, job *queue.Job) (*Record, error) {
	if job.Status != queue.StatusSuccess {
		return nil, services.Wrap(services.ErrNotReady, "metadata", "extract",
			fmt.Sprintf("job %s is %s", job.JobID, job.Status), nil)
	}

	manifest, err := e.client.FetchManifest(ctx, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	hierarchy, err := e.client.FetchHierarchy(ctx, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("fetch hierarchy: %w", err)
	}

	record := e.build(job, manifest, hierarchy)

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	if err := e.store.AttachManifest(ctx, job.JobID, string(manifestJSON)); err != nil {
		return nil, err
	}
	if err := e.store.AttachMetadata(ctx, job.JobID, string(recordJSON)); err != nil {
		return nil, err
	}

	e.logger.Info("metadata extracted", logging.Args(
		logging.String(logging.FieldJobID, job.JobID),
		logging.Int("nodes", record.Structure.TotalNodes),
		logging.Float64("overall_score", record.Score.Overall),
	)...)
	return record, nil
}

func (e *Extractor) build(job *queue.Job, manifest *provider.Manifest, hierarchy *provider.Hierarchy) *Record {
	stats := walk(manifest, hierarchy)

	disciplines := make(map[string]int)
	for category, count := range stats.Categories {
		disciplines[disciplineFor(category)] += count
	}

	score := scoreStats(e.cfg.Scoring, stats)
	return &Record{
		JobID:           job.JobID,
		URN:             manifest.URN,
		ExtractedAt:     time.Now().UTC(),
		Structure:       stats.Structure,
		Categories:      stats.Categories,
		Disciplines:     disciplines,
		Score:           score,
		Recommendations: recommend(e.cfg.Scoring, score, stats),
	}
}

// Parse decodes a stored quality record.
func Parse(recordJSON string) (*Record, error) {
	if recordJSON == "" {
		return nil, services.Wrap(services.ErrNotReady, "metadata", "parse", "no metadata recorded", nil)
	}
	var record Record
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, fmt.Errorf("decode metadata record: %w", err)
	}
	return &record, nil
}

func walk(manifest *provider.Manifest, hierarchy *provider.Hierarchy) walkStats {
	stats := walkStats{Categories: make(map[string]int)}

	for _, derivative := range manifest.Derivatives {
		stats.Structure.DerivativeCount++
		stats.Structure.TotalSizeBytes += derivative.SizeBytes
		if derivative.Status == "success" {
			stats.SuccessfulDerivatives++
		}
	}
	stats.Structure.ThumbnailCount = len(manifest.Thumbnails)

	for _, node := range hierarchy.Objects {
		walkNode(&stats, node, 1)
	}
	return stats
}

func walkNode(stats *walkStats, node provider.HierarchyNode, depth int) {
	stats.Structure.TotalNodes++
	if depth > stats.Structure.MaxDepth {
		stats.Structure.MaxDepth = depth
	}
	stats.Structure.PropertyCount += len(node.Properties)
	if node.Name != "" {
		stats.NamedNodes++
	}
	if node.Category != "" {
		stats.CategorizedNodes++
		stats.Categories[node.Category]++
	}
	if len(node.Children) == 0 {
		stats.Structure.LeafNodes++
		return
	}
	stats.Structure.IntermediateNodes++
	for _, child := range node.Children {
		walkNode(stats, child, depth+1)
	}
}

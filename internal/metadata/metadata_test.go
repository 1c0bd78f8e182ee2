package metadata

import (
	"context"
	"errors"
	"strings"
	"testing"

	"drafter/internal/provider"
	"drafter/internal/queue"
	"drafter/internal/services"
	"drafter/internal/testsupport"
)

type fakeModel struct {
	manifest  *provider.Manifest
	hierarchy *provider.Hierarchy
}

func (f *fakeModel) FetchManifest(ctx context.Context, urn string) (*provider.Manifest, error) {
	return f.manifest, nil
}

func (f *fakeModel) FetchHierarchy(ctx context.Context, urn string) (*provider.Hierarchy, error) {
	return f.hierarchy, nil
}

func buildingModel() *fakeModel {
	props := func(n int) map[string]string {
		out := make(map[string]string, n)
		for i := 0; i < n; i++ {
			out[string(rune('a'+i))] = "v"
		}
		return out
	}
	return &fakeModel{
		manifest: &provider.Manifest{
			URN:    "dXJuOnRlc3Q",
			Status: "success",
			Derivatives: []provider.Derivative{
				{Name: "model.svf", OutputType: "svf", Status: "success", SizeBytes: 4096},
				{Name: "thumb.png", OutputType: "thumbnail", Status: "success", SizeBytes: 128},
			},
			Thumbnails: []provider.Thumbnail{{GUID: "t1", Width: 200, Height: 200}},
		},
		hierarchy: &provider.Hierarchy{
			URN: "dXJuOnRlc3Q",
			Objects: []provider.HierarchyNode{
				{
					ObjectID: 1, Name: "Level 1", Category: "Levels",
					Children: []provider.HierarchyNode{
						{ObjectID: 2, Name: "Wall-01", Category: "Walls", Properties: props(20)},
						{ObjectID: 3, Name: "Wall-02", Category: "Walls", Properties: props(20)},
						{
							ObjectID: 4, Name: "HVAC", Category: "Mechanical Equipment",
							Children: []provider.HierarchyNode{
								{ObjectID: 5, Name: "Duct-01", Category: "Ducts", Properties: props(20)},
							},
						},
					},
				},
				{ObjectID: 6, Name: "Pipe-01", Category: "Pipes", Properties: props(20)},
			},
		},
	}
}

func TestWalkCountsStructure(t *testing.T) {
	model := buildingModel()
	stats := walk(model.manifest, model.hierarchy)

	if stats.Structure.TotalNodes != 6 {
		t.Fatalf("total nodes = %d, want 6", stats.Structure.TotalNodes)
	}
	if stats.Structure.LeafNodes != 4 {
		t.Fatalf("leaf nodes = %d, want 4", stats.Structure.LeafNodes)
	}
	if stats.Structure.IntermediateNodes != 2 {
		t.Fatalf("intermediate nodes = %d, want 2", stats.Structure.IntermediateNodes)
	}
	if stats.Structure.MaxDepth != 3 {
		t.Fatalf("max depth = %d, want 3", stats.Structure.MaxDepth)
	}
	if stats.Structure.PropertyCount != 80 {
		t.Fatalf("property count = %d, want 80", stats.Structure.PropertyCount)
	}
	if stats.Structure.DerivativeCount != 2 || stats.SuccessfulDerivatives != 2 {
		t.Fatalf("derivatives = %d/%d, want 2/2", stats.SuccessfulDerivatives, stats.Structure.DerivativeCount)
	}
	if stats.Categories["Walls"] != 2 {
		t.Fatalf("walls histogram = %d, want 2", stats.Categories["Walls"])
	}
}

func TestDisciplineDistributionCoversClassifiedNodes(t *testing.T) {
	model := buildingModel()
	stats := walk(model.manifest, model.hierarchy)

	disciplines := make(map[string]int)
	for category, count := range stats.Categories {
		disciplines[disciplineFor(category)] += count
	}

	sum := 0
	for _, count := range disciplines {
		sum += count
	}
	if sum != stats.CategorizedNodes {
		t.Fatalf("discipline counts sum to %d, want %d classified nodes", sum, stats.CategorizedNodes)
	}
	if disciplines["architecture"] != 2 {
		t.Fatalf("architecture = %d, want 2 walls", disciplines["architecture"])
	}
	if disciplines["mechanical"] != 2 {
		t.Fatalf("mechanical = %d, want 2", disciplines["mechanical"])
	}
	if disciplines["plumbing"] != 1 {
		t.Fatalf("plumbing = %d, want 1", disciplines["plumbing"])
	}
	// Levels has no discipline mapping.
	if disciplines[DisciplineOther] != 1 {
		t.Fatalf("other = %d, want 1", disciplines[DisciplineOther])
	}
}

func TestScoresStayInUnitInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	model := buildingModel()
	score := scoreStats(cfg.Scoring, walk(model.manifest, model.hierarchy))

	for name, value := range map[string]float64{
		"completeness": score.Completeness,
		"consistency":  score.Consistency,
		"detail":       score.Detail,
		"organization": score.Organization,
		"overall":      score.Overall,
	} {
		if value < 0 || value > 1 {
			t.Fatalf("%s = %f outside [0, 1]", name, value)
		}
	}

	mean := (score.Completeness + score.Consistency + score.Detail + score.Organization) / 4
	if diff := score.Overall - mean; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("overall %f is not the unweighted mean %f", score.Overall, mean)
	}
	// The fixture is fully named, categorized, and detailed.
	if score.Completeness != 1 || score.Consistency != 1 {
		t.Fatalf("fixture should score full completeness/consistency, got %f/%f", score.Completeness, score.Consistency)
	}
}

func TestRecommendationsFlagSparseModels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sparse := &fakeModel{
		manifest: &provider.Manifest{
			URN:    "dXJuOnNwYXJzZQ",
			Status: "success",
			Derivatives: []provider.Derivative{
				{Name: "model.svf", OutputType: "svf", Status: "failed"},
			},
		},
		hierarchy: &provider.Hierarchy{
			URN: "dXJuOnNwYXJzZQ",
			Objects: []provider.HierarchyNode{
				{ObjectID: 1}, {ObjectID: 2}, {ObjectID: 3},
			},
		},
	}
	stats := walk(sparse.manifest, sparse.hierarchy)
	score := scoreStats(cfg.Scoring, stats)
	recs := recommend(cfg.Scoring, score, stats)

	if len(recs) == 0 {
		t.Fatal("expected recommendations for a sparse model")
	}
	if len(recs) > cfg.Scoring.RecommendationLimit {
		t.Fatalf("%d recommendations exceed the limit %d", len(recs), cfg.Scoring.RecommendationLimit)
	}
	joined := strings.Join(recs, " ")
	if !strings.Contains(joined, "derivatives") {
		t.Fatalf("missing consistency recommendation in %q", joined)
	}
}

func TestExtractPersistsRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor := NewExtractor(cfg, store, buildingModel(), nil)

	job := testsupport.NewJob(t, store, "bucket/model.rvt")
	testsupport.MustTransition(t, store, job.JobID, queue.StatusInProgress, queue.TransitionPayload{})
	job = testsupport.MustTransition(t, store, job.JobID, queue.StatusSuccess, queue.TransitionPayload{})

	record, err := extractor.Extract(context.Background(), job)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if record.Structure.TotalNodes != 6 {
		t.Fatalf("total nodes = %d, want 6", record.Structure.TotalNodes)
	}

	stored, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.ManifestJSON == "" || stored.MetadataJSON == "" {
		t.Fatal("manifest or metadata not persisted")
	}
	parsed, err := Parse(stored.MetadataJSON)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Score.Overall != record.Score.Overall {
		t.Fatalf("stored overall %f differs from returned %f", parsed.Score.Overall, record.Score.Overall)
	}

	// Re-running replaces the record rather than erroring.
	again, err := extractor.Extract(context.Background(), stored)
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if again.Structure.TotalNodes != record.Structure.TotalNodes {
		t.Fatal("re-extraction diverged")
	}
}

func TestExtractRequiresSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor := NewExtractor(cfg, store, buildingModel(), nil)

	job := testsupport.NewJob(t, store, "bucket/model.rvt")
	if _, err := extractor.Extract(context.Background(), job); !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected not-ready error, got %v", err)
	}
}

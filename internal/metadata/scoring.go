package metadata

import (
	"fmt"

	"drafter/internal/config"
)

// walkStats is the raw material for scoring, gathered in one pass over
// the object hierarchy and the manifest.
type walkStats struct {
	Structure  Structure
	Categories map[string]int
	// NamedNodes and CategorizedNodes count nodes carrying a non-empty
	// name or category.
	NamedNodes       int
	CategorizedNodes int
	// SuccessfulDerivatives counts manifest derivatives whose status is
	// success.
	SuccessfulDerivatives int
}

func scoreStats(cfg config.Scoring, stats walkStats) Score {
	var s Score
	s.Completeness = completeness(stats)
	s.Consistency = consistency(stats)
	s.Detail = detail(cfg, stats)
	s.Organization = organization(cfg, stats)
	s.Overall = (s.Completeness + s.Consistency + s.Detail + s.Organization) / 4
	return s
}

// completeness rewards models whose elements carry names and categories.
func completeness(stats walkStats) float64 {
	total := stats.Structure.TotalNodes
	if total == 0 {
		return 0
	}
	named := float64(stats.NamedNodes) / float64(total)
	categorized := float64(stats.CategorizedNodes) / float64(total)
	return clamp((named + categorized) / 2)
}

// consistency measures how much of the requested output actually
// translated: the fraction of derivatives that reached success, zeroed
// when the model produced no object tree at all.
func consistency(stats walkStats) float64 {
	if stats.Structure.TotalNodes == 0 {
		return 0
	}
	if stats.Structure.DerivativeCount == 0 {
		return 0
	}
	return clamp(float64(stats.SuccessfulDerivatives) / float64(stats.Structure.DerivativeCount))
}

// detail scales average properties per leaf element against the
// configured ceiling.
func detail(cfg config.Scoring, stats walkStats) float64 {
	if stats.Structure.LeafNodes == 0 || cfg.DetailCeiling <= 0 {
		return 0
	}
	perLeaf := float64(stats.Structure.PropertyCount) / float64(stats.Structure.LeafNodes)
	return clamp(perLeaf / cfg.DetailCeiling)
}

// organization rewards hierarchies that are neither flat nor absurdly
// deep. Depth 2 up to the configured deep-hierarchy bound scores full.
func organization(cfg config.Scoring, stats walkStats) float64 {
	depth := stats.Structure.MaxDepth
	if depth == 0 {
		return 0
	}
	deep := cfg.DeepHierarchyDepth
	if deep <= 2 {
		deep = 3
	}
	switch {
	case depth < 2:
		return 0.5
	case depth <= deep:
		return 1
	default:
		return clamp(float64(deep) / float64(depth))
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// recommend turns low sub-scores into actionable suggestions, capped at
// the configured limit.
func recommend(cfg config.Scoring, score Score, stats walkStats) []string {
	threshold := cfg.LowScoreThreshold
	var out []string
	if score.Completeness < threshold {
		out = append(out, "Many elements lack names or categories; review source model annotations before re-translating.")
	}
	if score.Consistency < threshold {
		out = append(out, "Some requested derivatives did not translate; inspect the manifest for failed outputs.")
	}
	if score.Detail < threshold {
		out = append(out, fmt.Sprintf("Element property coverage is sparse (%d properties across %d leaf elements); enable full property extraction.",
			stats.Structure.PropertyCount, stats.Structure.LeafNodes))
	}
	if score.Organization < threshold {
		if stats.Structure.MaxDepth > cfg.DeepHierarchyDepth {
			out = append(out, fmt.Sprintf("Hierarchy is %d levels deep; consider flattening nested groups in the source model.", stats.Structure.MaxDepth))
		} else {
			out = append(out, "Hierarchy is flat; group elements into assemblies or levels for easier navigation.")
		}
	}
	if limit := cfg.RecommendationLimit; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

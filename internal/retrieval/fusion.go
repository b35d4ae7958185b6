package retrieval

import (
	"sort"

	"ctxengine/internal/models"
)

// strategyWeights controls how much each strategy contributes to the fused
// score. The default is an equal weight across strategies; callers that
// only want one or two strategies still get sensible relative weighting
// since fuse normalizes each strategy's scores before weighting them.
var strategyWeights = map[StrategyName]float64{
	StrategyKeyword:  1.0,
	StrategySemantic: 1.0,
	StrategyGraph:    1.0,
}

// fuse combines results from multiple strategies into one ranked list:
// scores are min-max normalized per strategy before being weighted and
// summed, entities below minScore are dropped, and ties break on strategy
// count (more corroborating strategies wins) then updated_at descending.
func fuse(results map[StrategyName][]EntityResult, minScore float64) []EntityResult {
	merged := make(map[string]*EntityResult)
	for strategy, res := range results {
		normalized := minMaxNormalize(res)
		weight := strategyWeights[strategy]
		if weight == 0 {
			weight = 1.0
		}
		for i, r := range normalized {
			contribution := r * weight
			id := res[i].Entity.ID
			if existing, ok := merged[id]; ok {
				existing.Score += contribution
				existing.Strategies = appendStrategy(existing.Strategies, strategy)
			} else {
				merged[id] = &EntityResult{
					Entity:     res[i].Entity,
					Score:      contribution,
					Strategies: []StrategyName{strategy},
				}
			}
		}
	}

	out := make([]EntityResult, 0, len(merged))
	maxScore := 0.0
	for _, r := range merged {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range merged {
		score := r.Score
		if maxScore > 0 {
			score = r.Score / maxScore
		}
		if score < minScore {
			continue
		}
		out = append(out, EntityResult{Entity: r.Entity, Score: score, Strategies: r.Strategies})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if len(out[i].Strategies) != len(out[j].Strategies) {
			return len(out[i].Strategies) > len(out[j].Strategies)
		}
		return out[i].Entity.UpdatedAt.After(out[j].Entity.UpdatedAt)
	})
	return out
}

func minMaxNormalize(res []EntityResult) []float64 {
	out := make([]float64, len(res))
	if len(res) == 0 {
		return out
	}
	min, max := res[0].Score, res[0].Score
	for _, r := range res {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	span := max - min
	for i, r := range res {
		if span <= 0 {
			out[i] = 1.0
			continue
		}
		out[i] = (r.Score - min) / span
	}
	return out
}

func appendStrategy(existing []StrategyName, s StrategyName) []StrategyName {
	for _, e := range existing {
		if e == s {
			return existing
		}
	}
	return append(existing, s)
}

// filterEntityTypes restricts results to the given types when non-empty.
func filterEntityTypes(res []EntityResult, types []models.EntityType) []EntityResult {
	if len(types) == 0 {
		return res
	}
	want := make(map[models.EntityType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	out := make([]EntityResult, 0, len(res))
	for _, r := range res {
		if want[r.Entity.Type] {
			out = append(out, r)
		}
	}
	return out
}

package retrieval

import (
	"context"
	"math"
	"os"
	"strconv"

	"ctxengine/internal/entitystore"
	"ctxengine/internal/graphstore"
)

// GraphStrategy expands the neighborhood of seed entities (typically the
// top-N keyword matches) out to maxDepth hops and scores each neighbor as
// seed_score * weight^depth.
type GraphStrategy struct {
	graph    *graphstore.Store
	entities *entitystore.Store
	weight   float64
	maxDepth int
}

func NewGraphStrategy(graph *graphstore.Store, entities *entitystore.Store) *GraphStrategy {
	weight := 0.5
	if v := os.Getenv("CTXENGINE_RETRIEVAL_WEIGHT_GRAPH_DECAY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			weight = f
		}
	}
	return &GraphStrategy{graph: graph, entities: entities, weight: weight, maxDepth: 2}
}

// Expand scores the bounded neighborhood of every seed, combining a seed's
// own score with hop decay; a neighbor reachable from multiple seeds or at
// multiple depths keeps its highest score.
func (g *GraphStrategy) Expand(ctx context.Context, seeds []EntityResult, limit int) ([]EntityResult, error) {
	if g.graph == nil || len(seeds) == 0 {
		return nil, nil
	}
	scores := make(map[string]float64)
	for _, seed := range seeds {
		if err := g.bfs(ctx, seed.Entity.ID, seed.Score, scores); err != nil {
			return nil, err
		}
	}
	out := make([]EntityResult, 0, len(scores))
	for id, score := range scores {
		e, err := g.entities.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, EntityResult{Entity: e, Score: score, Strategies: []StrategyName{StrategyGraph}})
	}
	sortByScoreDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *GraphStrategy) bfs(ctx context.Context, seedID string, seedScore float64, scores map[string]float64) error {
	visited := map[string]bool{seedID: true}
	frontier := []string{seedID}
	for depth := 1; depth <= g.maxDepth && len(frontier) > 0; depth++ {
		decay := math.Pow(g.weight, float64(depth))
		var next []string
		for _, id := range frontier {
			rels, err := g.graph.GetForEntity(ctx, id, graphstore.DirBoth, graphstore.EdgeOptions{Limit: 1000})
			if err != nil {
				return err
			}
			for _, r := range rels {
				other := r.TargetID
				if other == id {
					other = r.SourceID
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				next = append(next, other)
				score := seedScore * decay
				if cur, ok := scores[other]; !ok || score > cur {
					scores[other] = score
				}
			}
		}
		frontier = next
	}
	return nil
}

func sortByScoreDesc(res []EntityResult) {
	for i := 1; i < len(res); i++ {
		for j := i; j > 0 && res[j].Score > res[j-1].Score; j-- {
			res[j], res[j-1] = res[j-1], res[j]
		}
	}
}

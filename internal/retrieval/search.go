package retrieval

import (
	"context"
	"sort"

	"ctxengine/internal/entitystore"
	"ctxengine/internal/graphstore"
	"ctxengine/internal/llm"
	"ctxengine/internal/vectorstore"
)

// Searcher runs the multi-strategy search pipeline: query decomposition,
// per-strategy retrieval, and weighted fusion.
type Searcher struct {
	keyword  *KeywordStrategy
	semantic *SemanticStrategy
	graph    *GraphStrategy
}

func NewSearcher(entities *entitystore.Store, vs vectorstore.VectorStore, emb llm.Embedder, graph *graphstore.Store) *Searcher {
	return &Searcher{
		keyword:  NewKeywordStrategy(entities),
		semantic: NewSemanticStrategy(vs, emb, entities),
		graph:    NewGraphStrategy(graph, entities),
	}
}

// Search decomposes the query if compound, runs each requested strategy per
// sub-query, fuses per-sub-query results, then merges across sub-queries.
func (s *Searcher) Search(ctx context.Context, query string, opt SearchOptions) ([]EntityResult, error) {
	opt.applyDefaults()

	subQueries := Decompose(query)
	perQuery := make([][]EntityResult, 0, len(subQueries))
	weights := make([]float64, 0, len(subQueries))

	for _, sq := range subQueries {
		fused, err := s.searchOne(ctx, sq.Text, opt)
		if err != nil {
			return nil, err
		}
		perQuery = append(perQuery, fused)
		weights = append(weights, sq.Weight)
	}

	merged := MergeWeighted(perQuery, weights)
	merged = filterEntityTypes(merged, opt.EntityTypes)
	merged = dropBelow(merged, opt.MinScore)

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if len(merged[i].Strategies) != len(merged[j].Strategies) {
			return len(merged[i].Strategies) > len(merged[j].Strategies)
		}
		return merged[i].Entity.UpdatedAt.After(merged[j].Entity.UpdatedAt)
	})
	if len(merged) > opt.Limit {
		merged = merged[:opt.Limit]
	}
	return merged, nil
}

func (s *Searcher) searchOne(ctx context.Context, query string, opt SearchOptions) ([]EntityResult, error) {
	overfetch := opt.Limit * 3
	results := make(map[StrategyName][]EntityResult)

	if wantsStrategy(opt, StrategyKeyword) {
		r, err := s.keyword.Search(ctx, query, opt.EntityTypes, overfetch)
		if err != nil {
			return nil, err
		}
		results[StrategyKeyword] = r
	}
	if wantsStrategy(opt, StrategySemantic) {
		r, err := s.semantic.Search(ctx, query, overfetch)
		if err != nil {
			return nil, err
		}
		results[StrategySemantic] = r
	}
	if wantsStrategy(opt, StrategyGraph) {
		seeds := results[StrategyKeyword]
		if len(seeds) == 0 {
			var err error
			seeds, err = s.keyword.Search(ctx, query, opt.EntityTypes, 5)
			if err != nil {
				return nil, err
			}
		}
		r, err := s.graph.Expand(ctx, seeds, overfetch)
		if err != nil {
			return nil, err
		}
		results[StrategyGraph] = r
	}

	return fuse(results, 0), nil
}

func dropBelow(res []EntityResult, minScore float64) []EntityResult {
	out := res[:0]
	for _, r := range res {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

package retrieval

import (
	"context"
	"os"
	"sort"

	"ctxengine/internal/entitystore"
	"ctxengine/internal/llm"
	"ctxengine/internal/vectorstore"
)

// SemanticStrategy embeds the query and ranks entities by the best
// (max-aggregated) cosine similarity across their chunks, remapped from
// [-1,1] to [0,1].
type SemanticStrategy struct {
	vs       vectorstore.VectorStore
	emb      llm.Embedder
	entities *entitystore.Store
	model    string
}

func NewSemanticStrategy(vs vectorstore.VectorStore, emb llm.Embedder, entities *entitystore.Store) *SemanticStrategy {
	model := os.Getenv("CTXENGINE_EMBEDDING_MODEL")
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &SemanticStrategy{vs: vs, emb: emb, entities: entities, model: model}
}

func (s *SemanticStrategy) Search(ctx context.Context, query string, limit int) ([]EntityResult, error) {
	if s.emb == nil || s.vs == nil {
		return nil, nil
	}
	vecs, err := s.emb.Embeddings(ctx, s.model, []string{query})
	if err != nil || len(vecs) == 0 {
		return nil, nil
	}
	// over-fetch chunks since several may map to the same entity.
	chunks, err := s.vs.Search(ctx, vecs[0], limit*4)
	if err != nil {
		return nil, err
	}
	best := make(map[string]float64)
	order := make([]string, 0, len(chunks))
	for _, c := range chunks {
		remapped := (c.Score + 1) / 2
		if cur, ok := best[c.EntityID]; !ok || remapped > cur {
			if !ok {
				order = append(order, c.EntityID)
			}
			best[c.EntityID] = remapped
		}
	}
	sort.Slice(order, func(i, j int) bool { return best[order[i]] > best[order[j]] })
	out := make([]EntityResult, 0, len(order))
	for _, id := range order {
		e, err := s.entities.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, EntityResult{Entity: e, Score: best[id], Strategies: []StrategyName{StrategySemantic}})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

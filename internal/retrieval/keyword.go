package retrieval

import (
	"context"

	"ctxengine/internal/entitystore"
	"ctxengine/internal/models"
)

// KeywordStrategy runs FTS over entities and normalizes FTS rank order into
// a [0,1] score (best match first).
type KeywordStrategy struct {
	entities *entitystore.Store
}

func NewKeywordStrategy(entities *entitystore.Store) *KeywordStrategy {
	return &KeywordStrategy{entities: entities}
}

func (k *KeywordStrategy) Search(ctx context.Context, query string, types []models.EntityType, limit int) ([]EntityResult, error) {
	typ := models.EntityType("")
	if len(types) == 1 {
		typ = types[0]
	}
	found, err := k.entities.Search(ctx, query, entitystore.SearchOptions{Type: typ, Limit: limit})
	if err != nil {
		return nil, err
	}
	if len(types) > 1 {
		found = filterByTypes(found, types)
	}
	n := len(found)
	out := make([]EntityResult, 0, n)
	for i, e := range found {
		score := 1.0
		if n > 1 {
			score = 1.0 - float64(i)/float64(n)
		}
		out = append(out, EntityResult{Entity: e, Score: score, Strategies: []StrategyName{StrategyKeyword}})
	}
	return out, nil
}

func filterByTypes(entities []*models.Entity, types []models.EntityType) []*models.Entity {
	want := make(map[models.EntityType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	out := make([]*models.Entity, 0, len(entities))
	for _, e := range entities {
		if want[e.Type] {
			out = append(out, e)
		}
	}
	return out
}

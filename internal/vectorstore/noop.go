package vectorstore

import "context"

// Noop is a local fallback that disables vector search gracefully.
type Noop struct{}

func (Noop) Upsert(ctx context.Context, chunks []Chunk) error { return nil }
func (Noop) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	return nil, nil
}
func (Noop) DeleteByEntity(ctx context.Context, entityID string) error { return nil }

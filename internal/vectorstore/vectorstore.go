// Package vectorstore stores and searches the embedding chunks C6 produces,
// scoped to one project's table prefix like every other store package.
package vectorstore

import "context"

// Chunk is a single embedded chunk ready to persist.
type Chunk struct {
	EntityID    string
	ChunkIndex  int
	StartOffset int
	EndOffset   int
	Text        string
	Vector      []float32
	ModelID     string
}

// Result is one nearest-neighbor hit.
type Result struct {
	EntityID   string
	ChunkIndex int
	Text       string
	Score      float64 // cosine similarity, higher is better
}

// VectorStore is the semantic-search backend C6 writes to and C9 reads
// from. A second implementation (e.g. pgvector) can be swapped in without
// touching either caller.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	DeleteByEntity(ctx context.Context, entityID string) error
}

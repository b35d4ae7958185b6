// Package retrieval implements the multi-strategy search and context
// assembler (C9): keyword/semantic/graph retrieval strategies, weighted
// score fusion, query decomposition, and token-budgeted context packing.
// The strategy split follows a BM25Retriever/KNNRetriever/HybridRetriever
// shape, generalized from path-keyed document results to entity-keyed
// results with a graph strategy added, plus a query-intent classifier in
// the same vein as an intent-detection planner stage.
package retrieval

import (
	"ctxengine/internal/models"
)

// StrategyName identifies one retrieval strategy.
type StrategyName string

const (
	StrategyKeyword  StrategyName = "keyword"
	StrategySemantic StrategyName = "semantic"
	StrategyGraph    StrategyName = "graph"
)

// EntityResult is one scored entity from a strategy or from fused results.
type EntityResult struct {
	Entity     *models.Entity
	Score      float64
	Strategies []StrategyName
}

// SearchOptions parameterizes Searcher.Search.
type SearchOptions struct {
	Strategies  []StrategyName    // empty = all configured strategies
	Limit       int               // <=0 defaults to 10
	EntityTypes []models.EntityType
	MinScore    float64 // <=0 defaults to 0.3
}

func (o *SearchOptions) applyDefaults() {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.MinScore <= 0 {
		o.MinScore = 0.3
	}
	if len(o.Strategies) == 0 {
		o.Strategies = []StrategyName{StrategyKeyword, StrategySemantic, StrategyGraph}
	}
}

func wantsStrategy(opt SearchOptions, name StrategyName) bool {
	for _, s := range opt.Strategies {
		if s == name {
			return true
		}
	}
	return false
}

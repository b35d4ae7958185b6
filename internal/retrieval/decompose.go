package retrieval

import (
	"regexp"
	"strings"
)

// SubQuery is one decomposed fragment of a larger query, with a weight
// reflecting how much it should contribute to the merged result set.
type SubQuery struct {
	Text   string
	Weight float64
}

var (
	sentenceSplit   = regexp.MustCompile(`[;?]+`)
	conjunctionWords = regexp.MustCompile(`(?i)\s+(and also|as well as|and)\s+`)
	sequentialWords  = regexp.MustCompile(`(?i)\s+(then|after that)\s+`)
)

// Decompose splits a compound query into weighted sub-queries. Sentence
// boundaries (";" or "?") and conjunctions ("and", "as well as") produce
// sub-queries of equal weight; sequential connectors ("then") produce
// geometrically decaying weight since later clauses are usually follow-ups
// rather than independent asks. A query with no detected structure returns
// itself as the sole sub-query at weight 1.0.
func Decompose(query string) []SubQuery {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var out []SubQuery
	for _, sentence := range splitNonEmpty(sentenceSplit, query) {
		out = append(out, decomposeSequential(sentence)...)
	}
	if len(out) == 0 {
		return []SubQuery{{Text: query, Weight: 1.0}}
	}
	return out
}

func decomposeSequential(sentence string) []SubQuery {
	parts := splitNonEmpty(sequentialWords, sentence)
	if len(parts) <= 1 {
		return decomposeConjunctions(sentence, 1.0)
	}
	var out []SubQuery
	weight := 1.0
	for _, p := range parts {
		out = append(out, decomposeConjunctions(p, weight)...)
		weight *= 0.7
	}
	return out
}

func decomposeConjunctions(clause string, weight float64) []SubQuery {
	parts := splitNonEmpty(conjunctionWords, clause)
	if len(parts) <= 1 {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return nil
		}
		return []SubQuery{{Text: clause, Weight: weight}}
	}
	out := make([]SubQuery, 0, len(parts))
	for _, p := range parts {
		out = append(out, SubQuery{Text: p, Weight: weight})
	}
	return out
}

func splitNonEmpty(re *regexp.Regexp, s string) []string {
	raw := re.Split(s, -1)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// MergeWeighted combines per-sub-query result sets, scaling each result's
// score by its sub-query's weight and keeping the max contribution per
// entity across sub-queries.
func MergeWeighted(perQuery [][]EntityResult, weights []float64) []EntityResult {
	best := make(map[string]*EntityResult)
	for qi, res := range perQuery {
		w := 1.0
		if qi < len(weights) {
			w = weights[qi]
		}
		for _, r := range res {
			scaled := r.Score * w
			if existing, ok := best[r.Entity.ID]; ok {
				if scaled > existing.Score {
					existing.Score = scaled
				}
				existing.Strategies = mergeStrategies(existing.Strategies, r.Strategies)
			} else {
				cp := r
				cp.Score = scaled
				best[r.Entity.ID] = &cp
			}
		}
	}
	out := make([]EntityResult, 0, len(best))
	for _, r := range best {
		out = append(out, *r)
	}
	return out
}

func mergeStrategies(a, b []StrategyName) []StrategyName {
	for _, s := range b {
		a = appendStrategy(a, s)
	}
	return a
}

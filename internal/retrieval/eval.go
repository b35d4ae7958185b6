package retrieval

import (
	"context"
)

// QueryCase bundles a query with the entity IDs considered relevant for it.
type QueryCase struct {
	Query string
	Truth []string
}

// EvalMetrics aggregates retrieval quality across a set of cases.
type EvalMetrics struct {
	KAt5  float64
	KAt10 float64
	MRR   float64
}

// Evaluate runs Searcher.Search across cases and computes k@5, k@10, and
// mean reciprocal rank against each case's ground-truth entity IDs.
func Evaluate(ctx context.Context, s *Searcher, cases []QueryCase, opt SearchOptions) (EvalMetrics, error) {
	var hits5, hits10, sumRR float64
	n := float64(len(cases))
	for _, c := range cases {
		caseOpt := opt
		caseOpt.Limit = 10
		res, err := s.Search(ctx, c.Query, caseOpt)
		if err != nil {
			return EvalMetrics{}, err
		}
		truth := toSet(c.Truth)
		if hitAtK(res, truth, 5) {
			hits5++
		}
		if hitAtK(res, truth, 10) {
			hits10++
		}
		sumRR += rr(res, truth)
	}
	if n == 0 {
		return EvalMetrics{}, nil
	}
	return EvalMetrics{KAt5: hits5 / n, KAt10: hits10 / n, MRR: sumRR / n}, nil
}

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

func hitAtK(res []EntityResult, truth map[string]struct{}, k int) bool {
	if k > len(res) {
		k = len(res)
	}
	for i := 0; i < k; i++ {
		if _, ok := truth[res[i].Entity.ID]; ok {
			return true
		}
	}
	return false
}

func rr(res []EntityResult, truth map[string]struct{}) float64 {
	for i := 0; i < len(res); i++ {
		if _, ok := truth[res[i].Entity.ID]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

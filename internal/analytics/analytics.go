// Package analytics implements query logging and stats aggregation (C11):
// every retrieval call is written as a QueryLog row, feedback can
// back-annotate a prior call, and get_stats aggregates totals/averages by
// period. Uses plain parameterized SQL against the project's query_log
// table, with one aggregate query per period window.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"ctxengine/internal/ctxerr"
	"ctxengine/internal/models"
)

// Period bounds a get_stats aggregation window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// Store records and aggregates QueryLog rows for one project.
type Store struct {
	db     *sql.DB
	prefix string
}

func New(db *sql.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

func (s *Store) t(name string) string { return s.prefix + name }

// LogInput describes one retrieval call to record.
type LogInput struct {
	Query            string
	TokensRetrieved  int
	TokensSaved      int
	AverageRelevance float64
	StrategiesUsed   []string
	LatencyMS        int64
}

// Record writes one QueryLog row for a completed retrieval call.
func (s *Store) Record(ctx context.Context, in LogInput) (*models.QueryLog, error) {
	strategies, err := json.Marshal(in.StrategiesUsed)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "marshal strategies_used", err)
	}
	now := time.Now().UTC()
	log := &models.QueryLog{
		ID:               uuid.NewString(),
		Query:            in.Query,
		TokensRetrieved:  in.TokensRetrieved,
		TokensSaved:      in.TokensSaved,
		AverageRelevance: in.AverageRelevance,
		StrategiesUsed:   in.StrategiesUsed,
		LatencyMS:        in.LatencyMS,
		Timestamp:        now,
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.t("query_log")+`
		(id,query,tokens_retrieved,tokens_saved,average_relevance,strategies_used,latency_ms,was_useful,timestamp)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		log.ID, log.Query, log.TokensRetrieved, log.TokensSaved, log.AverageRelevance,
		string(strategies), log.LatencyMS, nil, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "insert query log", err)
	}
	return log, nil
}

// RecordFeedback back-annotates a prior query log with a usefulness signal.
func (s *Store) RecordFeedback(ctx context.Context, queryID string, useful bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE `+s.t("query_log")+` SET was_useful=? WHERE id=?`, boolToInt(useful), queryID)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "record query feedback", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ctxerr.New(ctxerr.KindNotFound, "query log not found: "+queryID)
	}
	return nil
}

// Stats aggregates QueryLog rows for one period.
type Stats struct {
	Period            Period  `json:"period"`
	TotalQueries      int     `json:"totalQueries"`
	AverageRelevance  float64 `json:"averageRelevance"`
	AverageLatencyMS  float64 `json:"averageLatencyMs"`
	TotalTokensSaved  int     `json:"totalTokensSaved"`
	UsefulCount       int     `json:"usefulCount"`
	NotUsefulCount    int     `json:"notUsefulCount"`
}

// GetStats aggregates totals and averages over the given period, measured
// back from now.
func (s *Store) GetStats(ctx context.Context, period Period) (Stats, error) {
	stats := Stats{Period: period}
	args := []any{}
	where := ""
	if cutoff, ok := cutoffFor(period); ok {
		where = " WHERE timestamp >= ?"
		args = append(args, cutoff.Format(time.RFC3339Nano))
	}

	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(1),
		COALESCE(AVG(average_relevance), 0),
		COALESCE(AVG(latency_ms), 0),
		COALESCE(SUM(tokens_saved), 0),
		COALESCE(SUM(CASE WHEN was_useful = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN was_useful = 0 THEN 1 ELSE 0 END), 0)
		FROM `+s.t("query_log")+where, args...)

	if err := row.Scan(&stats.TotalQueries, &stats.AverageRelevance, &stats.AverageLatencyMS,
		&stats.TotalTokensSaved, &stats.UsefulCount, &stats.NotUsefulCount); err != nil {
		return Stats{}, ctxerr.Wrap(ctxerr.KindInternal, "aggregate query stats", err)
	}
	return stats, nil
}

func cutoffFor(period Period) (time.Time, bool) {
	now := time.Now().UTC()
	switch period {
	case PeriodDay:
		return now.AddDate(0, 0, -1), true
	case PeriodWeek:
		return now.AddDate(0, 0, -7), true
	case PeriodMonth:
		return now.AddDate(0, -1, 0), true
	default:
		return time.Time{}, false
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

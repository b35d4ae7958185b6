package analytics

import (
	"context"
	"path/filepath"
	"testing"

	ctxsqlite "ctxengine/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := ctxsqlite.Open(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Skip("sqlite not available:", err)
	}
	t.Cleanup(func() { db.Close() })
	sanitized, err := ctxsqlite.SanitizeProjectID("demo")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.EnsureProject(context.Background(), sanitized); err != nil {
		t.Fatal(err)
	}
	return New(db.Raw(), ctxsqlite.TablePrefix(sanitized))
}

func TestRecordAndGetStatsAggregatesAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Record(ctx, LogInput{
			Query:            "find the parser",
			TokensRetrieved:  500,
			TokensSaved:      200,
			AverageRelevance: 0.8,
			StrategiesUsed:   []string{"keyword", "semantic"},
			LatencyMS:        100,
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	stats, err := s.GetStats(ctx, PeriodAll)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalQueries != 3 {
		t.Fatalf("expected 3 queries, got %d", stats.TotalQueries)
	}
	if stats.TotalTokensSaved != 600 {
		t.Fatalf("expected 600 tokens saved, got %d", stats.TotalTokensSaved)
	}
}

func TestRecordFeedbackUpdatesUsefulCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	log, err := s.Record(ctx, LogInput{Query: "q", AverageRelevance: 0.5})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.RecordFeedback(ctx, log.ID, true); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	stats, err := s.GetStats(ctx, PeriodAll)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.UsefulCount != 1 || stats.NotUsefulCount != 0 {
		t.Fatalf("unexpected useful counts: %+v", stats)
	}
}

func TestRecordFeedbackUnknownIDReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordFeedback(context.Background(), "missing", true); err == nil {
		t.Fatal("expected error for unknown query log id")
	}
}

func TestStatsSummaryFormatsHumanReadable(t *testing.T) {
	stats := Stats{TotalQueries: 1204, AverageRelevance: 0.78, AverageLatencyMS: 312, TotalTokensSaved: 48000, UsefulCount: 91, NotUsefulCount: 9}
	got := stats.Summary()
	if got == "" {
		t.Fatal("expected non-empty summary")
	}
}

package entitystore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	ctxsqlite "ctxengine/internal/storage/sqlite"
	"ctxengine/internal/ctxerr"
	"ctxengine/internal/models"
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

func TestCreateGetSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Input{Type: models.EntityFunction, Name: "hello", QualifiedName: "a.ts::hello", Content: "export function hello(){return 1}"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, e.ID)
	if err != nil || got.QualifiedName != "a.ts::hello" {
		t.Fatalf("Get: %v %+v", err, got)
	}

	results, err := s.Search(ctx, "hello", SearchOptions{})
	if err != nil || len(results) != 1 {
		t.Fatalf("Search: %v %d", err, len(results))
	}

	_, err = s.Create(ctx, Input{Type: models.EntityFunction, Name: "hello", QualifiedName: "a.ts::hello", Content: "dup"})
	if !ctxerr.Is(err, ctxerr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpsertSkipsUnchangedHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := Input{Type: models.EntityFunction, Name: "hello", QualifiedName: "a.ts::hello", Content: "return 1"}
	first, err := s.Upsert(ctx, in)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, err := s.Upsert(ctx, in)
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if second.UpdatedAt != first.UpdatedAt {
		t.Fatalf("expected unchanged row to keep UpdatedAt: %v vs %v", first.UpdatedAt, second.UpdatedAt)
	}

	in.Content = "return 2"
	third, err := s.Upsert(ctx, in)
	if err != nil {
		t.Fatalf("Upsert changed: %v", err)
	}
	if third.ContentHash == first.ContentHash {
		t.Fatalf("expected content hash to change")
	}
}

func TestTruncationAt500Lines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lines := make([]string, 600)
	for i := range lines {
		lines[i] = "line"
	}
	e, err := s.Create(ctx, Input{Type: models.EntityFile, Name: "big.go", QualifiedName: "big.go", Content: strings.Join(lines, "\n")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasSuffix(e.Content, truncateMarker) {
		t.Fatalf("expected truncated content to end with marker")
	}
	if got := strings.Count(e.Content, "\n"); got != truncateAtLines {
		t.Fatalf("expected %d newlines, got %d", truncateAtLines, got)
	}
}

func TestDeleteByFilePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, Input{Type: models.EntityFile, Name: "a.ts", QualifiedName: "a.ts", FilePath: "a.ts", Content: "overview"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, Input{Type: models.EntityFunction, Name: "hello", QualifiedName: "a.ts::hello", FilePath: "a.ts", Content: "fn"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteByFilePath(ctx, "a.ts"); err != nil {
		t.Fatalf("DeleteByFilePath: %v", err)
	}
	remaining, err := s.GetByFile(ctx, "a.ts")
	if err != nil || len(remaining) != 0 {
		t.Fatalf("expected no remaining entities, got %v %v", remaining, err)
	}
}

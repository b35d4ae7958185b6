package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ctxengine/internal/entitystore"
	ctxsqlite "ctxengine/internal/storage/sqlite"
)

func newTestIndexer(t *testing.T) (*Indexer, string) {
	t.Helper()
	dbDir := t.TempDir()
	db, err := ctxsqlite.Open(context.Background(), filepath.Join(dbDir, "test.db"))
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
	prefix := ctxsqlite.TablePrefix(sanitized)
	es := entitystore.New(db.Raw(), prefix)
	cp := NewSQLiteCheckpoints(db.Raw(), prefix)
	return New(es, cp), t.TempDir()
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunIndexesFilesAndSymbols(t *testing.T) {
	ix, root := newTestIndexer(t)
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")
	writeFile(t, root, "node_modules/ignored.go", "package ignored\n")

	res, err := ix.Run(context.Background(), "main", Options{Root: root})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Added) != 1 || res.Added[0] != "a.go" {
		t.Fatalf("expected a.go added, got %+v", res)
	}

	entities, err := ix.Entities.GetByFile(context.Background(), "a.go")
	if err != nil {
		t.Fatalf("GetByFile: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected file entity + Hello symbol entity, got %d: %+v", len(entities), entities)
	}
}

func TestRunSkipsUnchangedOnSecondPass(t *testing.T) {
	ix, root := newTestIndexer(t)
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")

	if _, err := ix.Run(context.Background(), "main", Options{Root: root}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := ix.Run(context.Background(), "main", Options{Root: root})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res.Unchanged) != 1 || len(res.Added) != 0 {
		t.Fatalf("expected a.go unchanged on second pass, got %+v", res)
	}
}

func TestRunReconcilesDeletions(t *testing.T) {
	ix, root := newTestIndexer(t)
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")
	if _, err := ix.Run(context.Background(), "main", Options{Root: root}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "a.go")); err != nil {
		t.Fatal(err)
	}
	res, err := ix.Run(context.Background(), "main", Options{Root: root})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != "a.go" {
		t.Fatalf("expected a.go reconciled as deleted, got %+v", res)
	}
	if entities, _ := ix.Entities.GetByFile(context.Background(), "a.go"); len(entities) != 0 {
		t.Fatalf("expected no entities left for a.go, got %+v", entities)
	}
}

func TestRunClearsCheckpointOnSuccess(t *testing.T) {
	ix, root := newTestIndexer(t)
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")
	if _, err := ix.Run(context.Background(), "main", Options{Root: root}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cp, err := ix.Checkpoint.Latest(context.Background(), "main")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if cp != nil {
		t.Fatalf("expected checkpoint cleared after successful run, got %+v", cp)
	}
}

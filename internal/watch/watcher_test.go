package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ctxengine/internal/entitystore"
	"ctxengine/internal/indexer"
	ctxsqlite "ctxengine/internal/storage/sqlite"
)

func newTestIndexer(t *testing.T) (*indexer.Indexer, *entitystore.Store) {
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
	prefix := ctxsqlite.TablePrefix(sanitized)
	es := entitystore.New(db.Raw(), prefix)
	cp := indexer.NewSQLiteCheckpoints(db.Raw(), prefix)
	return indexer.New(es, cp), es
}

func TestWatcherIndexesNewFile(t *testing.T) {
	root := t.TempDir()
	ix, es := newTestIndexer(t)

	w, err := New(ix, Options{Root: root, DebounceWindow: 20 * time.Millisecond, AutoReindex: true}, nil)
	if err != nil {
		t.Skip("fsnotify not available:", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	target := filepath.Join(root, "main.go")
	if err := os.WriteFile(target, []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e, err := es.GetByQualifiedName(context.Background(), "main.go"); err == nil && e != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected main.go to be indexed within the deadline")
}

func TestWatcherDeletesOnUnlink(t *testing.T) {
	root := t.TempDir()
	ix, es := newTestIndexer(t)

	target := filepath.Join(root, "gone.go")
	if err := os.WriteFile(target, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ix.IndexFile(context.Background(), root, "gone.go"); err != nil {
		t.Fatal(err)
	}

	w, err := New(ix, Options{Root: root, DebounceWindow: 20 * time.Millisecond, AutoReindex: true}, nil)
	if err != nil {
		t.Skip("fsnotify not available:", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := es.GetByQualifiedName(context.Background(), "gone.go"); err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected gone.go's entity to be deleted within the deadline")
}

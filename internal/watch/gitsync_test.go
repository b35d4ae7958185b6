package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type fakeVcsDiff struct {
	added, modified, deleted []string
}

func (f fakeVcsDiff) ChangedFiles(ctx context.Context, since string) ([]string, []string, []string, error) {
	return f.added, f.modified, f.deleted, nil
}

func TestGitSyncDispatchesAddedModifiedAndDeleted(t *testing.T) {
	root := t.TempDir()
	ix, es := newTestIndexer(t)

	if err := os.WriteFile(filepath.Join(root, "new.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "changed.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ix.IndexFile(context.Background(), root, "stale.go"); err == nil {
		t.Fatal("expected reading a nonexistent file to fail")
	}
	if err := os.WriteFile(filepath.Join(root, "stale.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ix.IndexFile(context.Background(), root, "stale.go"); err != nil {
		t.Fatal(err)
	}

	gs := NewGitSync(root, fakeVcsDiff{added: []string{"new.go"}, modified: []string{"changed.go"}, deleted: []string{"stale.go"}}, ix, nil)
	res, err := gs.Sync(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Added) != 1 || len(res.Modified) != 1 || len(res.Deleted) != 1 {
		t.Fatalf("unexpected sync result: %+v", res)
	}

	if _, err := es.GetByQualifiedName(context.Background(), "new.go"); err != nil {
		t.Fatalf("expected new.go indexed: %v", err)
	}
	if _, err := es.GetByQualifiedName(context.Background(), "stale.go"); err == nil {
		t.Fatal("expected stale.go entity to be deleted")
	}
}

func TestGitSyncRecordsFailureWithoutAbortingBatch(t *testing.T) {
	root := t.TempDir()
	ix, es := newTestIndexer(t)

	if err := os.WriteFile(filepath.Join(root, "ok.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	gs := NewGitSync(root, fakeVcsDiff{added: []string{"missing.go", "ok.go"}}, ix, nil)
	res, err := gs.Sync(context.Background(), "since")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("expected one failure recorded, got %+v", res.Failed)
	}
	if len(res.Added) != 1 || res.Added[0] != "ok.go" {
		t.Fatalf("expected ok.go to still be indexed: %+v", res)
	}
	if _, err := es.GetByQualifiedName(context.Background(), "ok.go"); err != nil {
		t.Fatalf("expected ok.go indexed: %v", err)
	}
}

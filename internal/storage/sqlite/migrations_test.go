package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrationsVersioningAndProjectSchema(t *testing.T) {
	dir := t.TempDir()
	dbpath := filepath.Join(dir, "mig.db")
	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Skip("sqlite open:", err)
	}
	defer db.Close()

	m := Manager{}
	if err := m.UpToLatest(context.Background(), db); err != nil {
		t.Fatalf("UpToLatest error: %v", err)
	}
	var v int
	if err := db.QueryRow(`SELECT version FROM schema_migrations`).Scan(&v); err != nil {
		t.Fatalf("version scan: %v", err)
	}
	if v <= 0 {
		t.Fatalf("unexpected version: %d", v)
	}
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='projects'`).Scan(&cnt); err != nil || cnt == 0 {
		t.Fatalf("expected table projects to exist")
	}

	sanitized, err := SanitizeProjectID("My Repo!!")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized != "my_repo" {
		t.Fatalf("expected my_repo, got %q", sanitized)
	}
	prefix := TablePrefix(sanitized)
	for i, stmt := range ProjectSchema(prefix) {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("project schema step %d: %v", i, err)
		}
	}
	mustHave := []string{prefix + "entities", prefix + "relationships", prefix + "sessions", prefix + "messages", prefix + "decisions", prefix + "embeddings", prefix + "checkpoints", prefix + "query_log"}
	for _, name := range mustHave {
		if err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&cnt); err != nil || cnt == 0 {
			t.Fatalf("expected table %s to exist", name)
		}
	}
	// idempotent re-apply
	for _, stmt := range ProjectSchema(prefix) {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("re-apply project schema: %v", err)
		}
	}
}

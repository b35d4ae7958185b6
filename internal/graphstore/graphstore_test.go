package graphstore

import (
	"context"
	"path/filepath"
	"testing"

	"ctxengine/internal/entitystore"
	ctxsqlite "ctxengine/internal/storage/sqlite"
	"ctxengine/internal/models"
)

func newTestStores(t *testing.T) (*Store, *entitystore.Store) {
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
	return New(db.Raw(), prefix), entitystore.New(db.Raw(), prefix)
}

func mustEntity(t *testing.T, es *entitystore.Store, qname string) string {
	t.Helper()
	e, err := es.Create(context.Background(), entitystore.Input{Type: models.EntityFunction, Name: qname, QualifiedName: qname, Content: qname})
	if err != nil {
		t.Fatal(err)
	}
	return e.ID
}

func TestNeighborhoodBoundedAndNoDuplicates(t *testing.T) {
	gs, es := newTestStores(t)
	ctx := context.Background()

	a := mustEntity(t, es, "a")
	b := mustEntity(t, es, "b")
	c := mustEntity(t, es, "c")
	d := mustEntity(t, es, "d")

	// a -> b -> c -> d, plus a cycle d -> a
	for _, e := range []Input{
		{SourceID: a, TargetID: b, Type: models.RelCalls, Weight: 0.9},
		{SourceID: b, TargetID: c, Type: models.RelCalls, Weight: 0.5},
		{SourceID: c, TargetID: d, Type: models.RelCalls, Weight: 0.5},
		{SourceID: d, TargetID: a, Type: models.RelCalls, Weight: 0.5},
	} {
		if _, err := gs.Create(ctx, e); err != nil {
			t.Fatalf("Create edge: %v", err)
		}
	}

	nb, err := gs.GetNeighborhood(ctx, a, 2, DirOut, nil)
	if err != nil {
		t.Fatalf("GetNeighborhood: %v", err)
	}
	if len(nb.Entities) != 3 {
		t.Fatalf("expected self+2 hops = 3 entities, got %d: %v", len(nb.Entities), nb.Entities)
	}
	seen := map[string]bool{}
	for _, id := range nb.Entities {
		if seen[id] {
			t.Fatalf("duplicate node in neighborhood: %s", id)
		}
		seen[id] = true
	}
	if seen[d] {
		t.Fatalf("d is 3 hops away and must not appear at depth 2")
	}
}

func TestDeleteForEntity(t *testing.T) {
	gs, es := newTestStores(t)
	ctx := context.Background()
	a := mustEntity(t, es, "a")
	b := mustEntity(t, es, "b")
	if _, err := gs.Create(ctx, Input{SourceID: a, TargetID: b, Type: models.RelCalls}); err != nil {
		t.Fatal(err)
	}
	if err := gs.DeleteForEntity(ctx, a); err != nil {
		t.Fatalf("DeleteForEntity: %v", err)
	}
	rels, err := gs.GetForEntity(ctx, b, DirBoth, EdgeOptions{})
	if err != nil || len(rels) != 0 {
		t.Fatalf("expected no remaining edges, got %v %v", rels, err)
	}
}

package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"ctxengine/internal/entitystore"
	"ctxengine/internal/graphstore"
	"ctxengine/internal/models"
	ctxsqlite "ctxengine/internal/storage/sqlite"
)

func newTestStores(t *testing.T) (*entitystore.Store, *graphstore.Store) {
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
	return entitystore.New(db.Raw(), prefix), graphstore.New(db.Raw(), prefix)
}

func mustCreateEntity(t *testing.T, es *entitystore.Store, name, content string) *models.Entity {
	t.Helper()
	e, err := es.Create(context.Background(), entitystore.Input{
		Type:          models.EntityFunction,
		Name:          name,
		QualifiedName: name,
		Content:       content,
		FilePath:      name + ".go",
	})
	if err != nil {
		t.Fatalf("create entity %s: %v", name, err)
	}
	return e
}

func TestKeywordStrategyRanksByFTSOrder(t *testing.T) {
	es, _ := newTestStores(t)
	ctx := context.Background()
	mustCreateEntity(t, es, "ParseConfig", "parses configuration from yaml files")
	mustCreateEntity(t, es, "WriteLog", "writes a log line to stdout")

	k := NewKeywordStrategy(es)
	res, err := k.Search(ctx, "configuration", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Entity.Name != "ParseConfig" {
		t.Fatalf("unexpected results: %+v", res)
	}
}

func TestGraphStrategyDecaysScoreWithDepth(t *testing.T) {
	es, gs := newTestStores(t)
	ctx := context.Background()
	a := mustCreateEntity(t, es, "A", "root entity")
	b := mustCreateEntity(t, es, "B", "one hop away")
	c := mustCreateEntity(t, es, "C", "two hops away")

	if _, err := gs.Create(ctx, graphstore.Input{SourceID: a.ID, TargetID: b.ID, Type: models.RelCalls, Weight: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := gs.Create(ctx, graphstore.Input{SourceID: b.ID, TargetID: c.ID, Type: models.RelCalls, Weight: 1}); err != nil {
		t.Fatal(err)
	}

	g := NewGraphStrategy(gs, es)
	seeds := []EntityResult{{Entity: a, Score: 1.0, Strategies: []StrategyName{StrategyKeyword}}}
	res, err := g.Expand(ctx, seeds, 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	scores := make(map[string]float64)
	for _, r := range res {
		scores[r.Entity.Name] = r.Score
	}
	if scores["B"] <= scores["C"] {
		t.Fatalf("expected closer neighbor to score higher: B=%v C=%v", scores["B"], scores["C"])
	}
	if _, ok := scores["A"]; ok {
		t.Fatalf("seed itself should not reappear in expansion: %+v", res)
	}
}

func TestFuseDropsBelowMinScoreAndMergesStrategies(t *testing.T) {
	e1 := &models.Entity{ID: "e1", Name: "one"}
	e2 := &models.Entity{ID: "e2", Name: "two"}
	results := map[StrategyName][]EntityResult{
		StrategyKeyword:  {{Entity: e1, Score: 1.0}, {Entity: e2, Score: 0.1}},
		StrategySemantic: {{Entity: e1, Score: 0.9}},
	}
	out := fuse(results, 0.5)
	if len(out) != 1 || out[0].Entity.ID != "e1" {
		t.Fatalf("expected only e1 to survive fusion: %+v", out)
	}
	if len(out[0].Strategies) != 2 {
		t.Fatalf("expected e1 to carry both strategies: %+v", out[0].Strategies)
	}
}

func TestDecomposeSplitsOnConjunctionsAndSequentials(t *testing.T) {
	subs := Decompose("explain the parser and the lexer")
	if len(subs) != 2 {
		t.Fatalf("expected 2 sub-queries, got %+v", subs)
	}
	if subs[0].Weight != subs[1].Weight {
		t.Fatalf("conjunction sub-queries should share weight: %+v", subs)
	}

	seq := Decompose("index the repo then summarize the results")
	if len(seq) != 2 {
		t.Fatalf("expected 2 sequential sub-queries, got %+v", seq)
	}
	if seq[1].Weight >= seq[0].Weight {
		t.Fatalf("later sequential clause should decay in weight: %+v", seq)
	}
}

func TestDecomposeReturnsWholeQueryWhenNoStructure(t *testing.T) {
	subs := Decompose("where is the main entry point")
	if len(subs) != 1 || subs[0].Text != "where is the main entry point" {
		t.Fatalf("unexpected decomposition: %+v", subs)
	}
}

func TestAssembleRespectsTokenBudgetAndMarksTruncated(t *testing.T) {
	results := []EntityResult{
		{Entity: &models.Entity{ID: "a", Name: "A", Content: stringsRepeat("x", 400)}, Score: 0.9},
		{Entity: &models.Entity{ID: "b", Name: "B", Content: stringsRepeat("y", 400)}, Score: 0.8},
	}
	out := Assemble(results, AssembleOptions{TokenBudget: 150})
	if len(out.Sources) != 1 {
		t.Fatalf("expected only one entity to fit budget, got %+v", out.Sources)
	}
	if !out.Truncated {
		t.Fatal("expected Truncated=true")
	}
}

func TestAssembleRendersMarkdownByDefault(t *testing.T) {
	results := []EntityResult{
		{Entity: &models.Entity{ID: "a", Name: "Foo", Content: "body text", FilePath: "foo.go"}, Score: 0.5},
	}
	out := Assemble(results, AssembleOptions{})
	if !contains(out.Text, "### Foo") || !contains(out.Text, "foo.go") {
		t.Fatalf("expected markdown header with file path, got: %s", out.Text)
	}
}

func TestClassifyIntentAndRetrievalK(t *testing.T) {
	if ClassifyIntent("where is the parser defined") != IntentNavigate {
		t.Fatal("expected navigate intent")
	}
	if ClassifyIntent("refactor the auth module") != IntentEdit {
		t.Fatal("expected edit intent")
	}
	if RetrievalK(IntentResearch, 3) != 10 {
		t.Fatalf("expected research intent to raise K to 10")
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

package convstore

import (
	"context"
	"testing"

	"ctxengine/internal/models"
)

func TestPatternGateMatchesDecisionPhrases(t *testing.T) {
	cases := map[string]bool{
		"We decided to use Postgres for this.":    true,
		"Let's go with the streaming approach":    true,
		"I'll use a worker pool here":             true,
		"The weather is nice today":               false,
		"choosing between A and B":                true,
	}
	for msg, want := range cases {
		if got := PatternGate(msg); got != want {
			t.Errorf("PatternGate(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestParseDecisionBlocksNoDecisions(t *testing.T) {
	if got := ParseDecisionBlocks("NO_DECISIONS"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	if got := ParseDecisionBlocks("  no_decisions  "); got != nil {
		t.Fatalf("expected nil for case-insensitive match, got %+v", got)
	}
}

func TestParseDecisionBlocksMultiple(t *testing.T) {
	raw := `DECISION: use sqlite for storage
CONTEXT: simplicity and zero ops
ALTERNATIVES: postgres, mysql

DECISION: use fts5 for search
CONTEXT: built into sqlite
ALTERNATIVES: `
	got := ParseDecisionBlocks(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 decisions, got %d: %+v", len(got), got)
	}
	if got[0].Description != "use sqlite for storage" || len(got[0].Alternatives) != 2 {
		t.Fatalf("unexpected first decision: %+v", got[0])
	}
	if got[1].Description != "use fts5 for search" || len(got[1].Alternatives) != 0 {
		t.Fatalf("unexpected second decision: %+v", got[1])
	}
}

type fakeDecisionProvider struct {
	available bool
	response  string
}

func (f fakeDecisionProvider) IsAvailable(ctx context.Context) bool { return f.available }
func (f fakeDecisionProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, nil
}

func TestDecisionExtractorUnavailableProviderYieldsNone(t *testing.T) {
	e := &DecisionExtractor{Provider: fakeDecisionProvider{available: false}}
	got, err := e.Extract(context.Background(), "we decided to use sqlite")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}
}

func TestDecisionExtractorParsesProviderResponse(t *testing.T) {
	e := &DecisionExtractor{Provider: fakeDecisionProvider{available: true, response: "DECISION: use sqlite\nCONTEXT: simple\nALTERNATIVES: postgres"}}
	got, err := e.Extract(context.Background(), "we decided to use sqlite")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Description != "use sqlite" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestCreateDecisionMirrorsEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "decisions")
	d, err := s.CreateDecision(ctx, DecisionInput{SessionID: sess.ID, Description: "use sqlite for storage", Context: "simplicity"})
	if err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}
	if d.Status != models.DecisionOpen {
		t.Fatalf("expected open status, got %v", d.Status)
	}
	e, err := s.entities.GetByQualifiedName(ctx, "decision::"+d.ID)
	if err != nil {
		t.Fatalf("expected mirrored entity, got error: %v", err)
	}
	if e.Type != models.EntityDecision {
		t.Fatalf("expected decision entity type, got %v", e.Type)
	}
}

func TestSupersedeDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "supersede")
	old, _ := s.CreateDecision(ctx, DecisionInput{SessionID: sess.ID, Description: "use redis"})
	replacement, _ := s.CreateDecision(ctx, DecisionInput{SessionID: sess.ID, Description: "use postgres instead"})
	if err := s.SupersedeDecision(ctx, old.ID, replacement.ID); err != nil {
		t.Fatalf("SupersedeDecision: %v", err)
	}
	found, err := s.SearchDecisions(ctx, "redis", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Status != models.DecisionSuperseded || found[0].SupersededBy != replacement.ID {
		t.Fatalf("unexpected decision state: %+v", found)
	}
}

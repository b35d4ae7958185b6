package summarize

import (
	"context"
	"errors"
	"testing"

	"ctxengine/internal/models"
)

type fakeProvider struct {
	available bool
	failTimes int
	calls     int
	result    string
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return f.available }

func (f *fakeProvider) Summarize(ctx context.Context, content string, opt SummarizeOptions) (string, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return "", errors.New("transient failure")
	}
	return f.result, nil
}

func newEntity(id, name, content string) *models.Entity {
	return &models.Entity{ID: id, Type: models.EntityFunction, Name: name, Content: content}
}

func TestRunUsesFirstAvailableProvider(t *testing.T) {
	unavailable := &fakeProvider{available: false}
	primary := &fakeProvider{available: true, result: "a concise summary"}
	p := New(Options{}, unavailable, primary)

	entities := []*models.Entity{newEntity("e1", "DoThing", "func DoThing() {}\nreturn nil")}
	saved := map[string]string{}
	res := p.Run(context.Background(), entities, func(ctx context.Context, id, summary string) error {
		saved[id] = summary
		return nil
	})
	if len(res.Summarized) != 1 || res.Summarized[0] != "e1" {
		t.Fatalf("expected e1 summarized, got %+v", res)
	}
	if saved["e1"] != "a concise summary" {
		t.Fatalf("unexpected saved summary: %q", saved["e1"])
	}
}

func TestRunRetriesTransientFailureThenSucceeds(t *testing.T) {
	prov := &fakeProvider{available: true, failTimes: 2, result: "ok after retry"}
	p := New(Options{MaxRetries: 5}, prov)

	entities := []*models.Entity{newEntity("e1", "Thing", "body")}
	saved := map[string]string{}
	res := p.Run(context.Background(), entities, func(ctx context.Context, id, summary string) error {
		saved[id] = summary
		return nil
	})
	if len(res.Summarized) != 1 {
		t.Fatalf("expected success after retry, got %+v", res)
	}
	if saved["e1"] != "ok after retry" {
		t.Fatalf("unexpected summary: %q", saved["e1"])
	}
}

func TestRunFallsBackToTemplateWhenNoProviderAvailable(t *testing.T) {
	p := New(Options{})
	entities := []*models.Entity{newEntity("e1", "Thing", "func Thing() error {\n  return nil\n}")}
	res := p.Run(context.Background(), entities, func(ctx context.Context, id, summary string) error { return nil })
	if len(res.TemplateFallback) != 1 || res.TemplateFallback[0] != "e1" {
		t.Fatalf("expected template fallback for e1, got %+v", res)
	}
}

func TestRunRecordsPerEntityFailureWithoutAbortingBatch(t *testing.T) {
	p := New(Options{MaxRetries: 1})
	entities := []*models.Entity{
		newEntity("e1", "A", "content a"),
		newEntity("e2", "B", "content b"),
	}
	saved := map[string]string{}
	res := p.Run(context.Background(), entities, func(ctx context.Context, id, summary string) error {
		if id == "e2" {
			return errors.New("persist failed")
		}
		saved[id] = summary
		return nil
	})
	if _, ok := saved["e1"]; !ok {
		t.Fatalf("expected e1 persisted despite e2's failure")
	}
	if _, failed := res.Failed["e2"]; !failed {
		t.Fatalf("expected e2 recorded as failed, got %+v", res)
	}
}

func TestTemplateSummaryIncludesNameAndFirstLines(t *testing.T) {
	e := newEntity("e1", "Parse", "func Parse(s string) (*Node, error) {\n\n  // entry point\n  return parse(s)\n}")
	summary := TemplateSummary(e)
	if summary == "" {
		t.Fatal("expected non-empty template summary")
	}
	if !contains(summary, "Parse") {
		t.Fatalf("expected summary to mention entity name, got %q", summary)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// Package summarize implements the summarization pipeline (C7): an ordered
// provider fallback list, batched retry with exponential backoff, and a
// deterministic template fallback for when no provider is available.
package summarize

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ctxengine/internal/log"
	"ctxengine/internal/models"
)

// SummarizeOptions parameterizes a single Provider.Summarize call.
type SummarizeOptions struct {
	EntityType  models.EntityType
	Name        string
	MaxTokens   int
	Temperature float32
}

// Provider is one summarization backend in the fallback list.
type Provider interface {
	IsAvailable(ctx context.Context) bool
	Summarize(ctx context.Context, content string, opt SummarizeOptions) (string, error)
}

// Options configures a Pipeline.
type Options struct {
	BatchSize   int
	MaxRetries  int
	MaxTokens   int
	Temperature float32
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 200
	}
}

// Pipeline summarizes entities via the first available provider in its
// fallback list, retrying transient failures before giving up on an entity.
type Pipeline struct {
	providers []Provider
	opt       Options
	log       *log.Logger
}

// New returns a Pipeline that tries providers in order for every entity.
func New(opt Options, providers ...Provider) *Pipeline {
	opt.applyDefaults()
	return &Pipeline{
		providers: providers,
		opt:       opt,
		log:       log.New().With(map[string]string{"component": "summarize"}),
	}
}

// Result reports the outcome of a Run across a set of entities.
type Result struct {
	Summarized       []string
	TemplateFallback []string
	Failed           map[string]string // entity id -> error
}

// Run summarizes each entity, persisting via update, in fixed-size batches.
// A per-entity failure is recorded in Failed and the run continues; it never
// aborts on an individual entity's error.
func (p *Pipeline) Run(ctx context.Context, entities []*models.Entity, update func(ctx context.Context, id, summary string) error) Result {
	res := Result{Failed: make(map[string]string)}
	for start := 0; start < len(entities); start += p.opt.BatchSize {
		end := start + p.opt.BatchSize
		if end > len(entities) {
			end = len(entities)
		}
		for _, e := range entities[start:end] {
			select {
			case <-ctx.Done():
				res.Failed[e.ID] = ctx.Err().Error()
				continue
			default:
			}
			summary, usedTemplate, err := p.summarizeOne(ctx, e)
			if err != nil {
				p.log.Error("summarize entity failed", "entity_id", e.ID, "error", err.Error())
				res.Failed[e.ID] = err.Error()
				continue
			}
			if err := update(ctx, e.ID, summary); err != nil {
				p.log.Error("persist summary failed", "entity_id", e.ID, "error", err.Error())
				res.Failed[e.ID] = err.Error()
				continue
			}
			if usedTemplate {
				res.TemplateFallback = append(res.TemplateFallback, e.ID)
			} else {
				res.Summarized = append(res.Summarized, e.ID)
			}
		}
	}
	return res
}

// summarizeOne tries every provider in order, retrying each with exponential
// backoff up to MaxRetries, and falls back to the deterministic template
// when no provider is available or all providers fail.
func (p *Pipeline) summarizeOne(ctx context.Context, e *models.Entity) (string, bool, error) {
	opt := SummarizeOptions{EntityType: e.Type, Name: e.Name, MaxTokens: p.opt.MaxTokens, Temperature: p.opt.Temperature}
	for _, prov := range p.providers {
		if !prov.IsAvailable(ctx) {
			continue
		}
		summary, err := p.summarizeWithRetry(ctx, prov, e.Content, opt)
		if err == nil {
			return summary, false, nil
		}
		p.log.Warn("summarization provider failed, trying next", "entity_id", e.ID, "error", err.Error())
	}
	return TemplateSummary(e), true, nil
}

func (p *Pipeline) summarizeWithRetry(ctx context.Context, prov Provider, content string, opt SummarizeOptions) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	retried := backoff.WithMaxRetries(bo, uint64(p.opt.MaxRetries))
	var out string
	op := func() error {
		s, err := prov.Summarize(ctx, content, opt)
		if err != nil {
			return err
		}
		out = s
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(retried, ctx)); err != nil {
		return "", err
	}
	return out, nil
}

// Package facade implements the service facade (C12): per-project lazily
// initialized component bundles cached behind a bounded LRU, and an action
// router that validates required parameters and returns a ctxerr.Envelope.
// A single set of shared collaborators is handed to every handler, the
// way a long-lived API struct would, but keyed per project instead of
// built once for the whole process, and returning a ctxerr.Envelope
// instead of an HTTP status code.
package facade

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"ctxengine/internal/analytics"
	"ctxengine/internal/convstore"
	"ctxengine/internal/ctxerr"
	"ctxengine/internal/entitystore"
	"ctxengine/internal/graphstore"
	"ctxengine/internal/indexer"
	"ctxengine/internal/indexer/embedpipe"
	"ctxengine/internal/indexer/summarize"
	"ctxengine/internal/llm"
	"ctxengine/internal/retrieval"
	ctxsqlite "ctxengine/internal/storage/sqlite"
	"ctxengine/internal/vectorstore"
)

// components bundles every per-project collaborator, built once per project
// and reused across calls until the project is deleted or the cache evicts it.
type components struct {
	entities   *entitystore.Store
	graph      *graphstore.Store
	convos     *convstore.Store
	analytics  *analytics.Store
	indexer    *indexer.Indexer
	embed      *embedpipe.Pipeline
	summarize  *summarize.Pipeline
	search     *retrieval.Searcher
	extractor  *convstore.DecisionExtractor
}

// Facade owns the process-wide DB handle and an LRU of per-project
// component bundles, plus the external collaborators (chat/embedding
// providers, vector store backend) shared across all projects.
type Facade struct {
	db  *ctxsqlite.DB
	chat llm.ChatProvider
	emb  llm.Embedder

	mu    sync.Mutex
	cache *lru.Cache[string, *components]
}

// New returns a Facade backed by db, with an LRU cache holding up to
// maxCachedProjects component bundles (default 16 if <=0).
func New(db *ctxsqlite.DB, chat llm.ChatProvider, emb llm.Embedder, maxCachedProjects int) (*Facade, error) {
	if maxCachedProjects <= 0 {
		maxCachedProjects = 16
	}
	cache, err := lru.New[string, *components](maxCachedProjects)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "create component cache", err)
	}
	return &Facade{db: db, chat: chat, emb: emb, cache: cache}, nil
}

// bundleFor returns the cached component bundle for a project, building it
// on first access. projectID is the facade-facing ID; the table prefix is
// derived from the project's sanitized ID.
func (f *Facade) bundleFor(ctx context.Context, projectID string) (*components, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache.Get(projectID); ok {
		return c, nil
	}

	_, sanitized, err := f.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := f.db.EnsureProject(ctx, sanitized); err != nil {
		return nil, err
	}
	prefix := ctxsqlite.TablePrefix(sanitized)
	rawDB := f.db.Raw()

	es := entitystore.New(rawDB, prefix)
	gs := graphstore.New(rawDB, prefix)
	vs := vectorstore.NewSQLite(rawDB, prefix)
	cp := indexer.NewSQLiteCheckpoints(rawDB, prefix)

	var decisionProvider convstore.DecisionProvider
	if f.chat != nil {
		decisionProvider = decisionProviderAdapter{chat: f.chat}
	}

	c := &components{
		entities:  es,
		graph:     gs,
		convos:    convstore.New(rawDB, prefix, es),
		analytics: analytics.New(rawDB, prefix),
		indexer:   indexer.New(es, cp),
		embed:     embedpipe.New(f.emb, vs),
		summarize: newSummarizePipeline(f.chat),
		search:    retrieval.NewSearcher(es, vs, f.emb, gs),
		extractor: &convstore.DecisionExtractor{Provider: decisionProvider},
	}
	f.cache.Add(projectID, c)
	return c, nil
}

// InvalidateProject evicts a project's cached bundle, used when a project
// is deleted so a stale bundle can't be reused under a reissued ID.
func (f *Facade) InvalidateProject(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Remove(projectID)
}

// ClearCache evicts every cached bundle.
func (f *Facade) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Purge()
}

func newSummarizePipeline(chat llm.ChatProvider) *summarize.Pipeline {
	var providers []summarize.Provider
	if chat != nil {
		providers = append(providers, summarize.ChatProvider{Chat: chat, Model: defaultSummarizeModel})
	}
	return summarize.New(summarize.Options{}, providers...)
}

const defaultSummarizeModel = "gpt-4o-mini"

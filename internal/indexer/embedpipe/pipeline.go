package embedpipe

import (
	"context"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ctxengine/internal/llm"
	"ctxengine/internal/log"
	"ctxengine/internal/vectorstore"
)

// item is one entity queued for chunking and embedding.
type item struct {
	entityID string
	path     string
	text     string
	provider string
	model    string
}

// chunkJob is one chunk of one item, the unit actually sent to the embedder.
type chunkJob struct {
	entityID    string
	chunkIndex  int
	startOffset int
	endOffset   int
	text        string
	provider    string
	model       string
}

type Pipeline struct {
	emb     llm.Embedder
	vs      vectorstore.VectorStore
	model   string
	prov    string
	batch   int
	chunkOp ChunkOptions
	cache   map[string]struct{}
	items   []item
	tr      Translator
	log     *log.Logger
}

func New(emb llm.Embedder, vs vectorstore.VectorStore) *Pipeline {
	if emb == nil || vs == nil {
		return nil
	}
	return &Pipeline{
		emb:     emb,
		vs:      vs,
		model:   getDefaultModel(),
		prov:    getDefaultProvider(),
		batch:   8,
		chunkOp: chunkOptionsFromEnv(),
		cache:   make(map[string]struct{}),
		log:     log.New().With(map[string]string{"component": "embedpipe"}),
	}
}

// WithTranslator sets an optional translator used for language fallback.
func (p *Pipeline) WithTranslator(tr Translator) *Pipeline { p.tr = tr; return p }

// Add schedules an entity's content for chunking and embedding. sha is used
// for simple de-dup so unchanged entities are not re-embedded within a run.
func (p *Pipeline) Add(entityID, path, sha, text string) {
	if p == nil {
		return
	}
	key := entityID + "|" + sha
	if sha != "" {
		if _, ok := p.cache[key]; ok {
			return
		}
		p.cache[key] = struct{}{}
	}
	imodel := pickModelForPath(path, p.model)
	iprov := pickProviderForPath(path, p.prov)
	p.items = append(p.items, item{entityID: entityID, path: path, text: text, model: imodel, provider: iprov})
	if len(p.items) >= p.batch {
		_ = p.Flush(context.Background())
	}
}

// Flush chunks pending entities, embeds each group of chunks sharing a
// (model, provider) pair, and upserts the resulting vectors. A group that
// fails every retry is embedded again one chunk at a time; a chunk that
// still fails is logged and skipped, and the group's other chunks are
// still written.
func (p *Pipeline) Flush(ctx context.Context) error {
	if p == nil || len(p.items) == 0 {
		return nil
	}
	var jobs []chunkJob
	for _, it := range p.items {
		for _, c := range ChunkEntity(it.text, p.chunkOp) {
			jobs = append(jobs, chunkJob{
				entityID: it.entityID, chunkIndex: c.Index,
				startOffset: c.StartOffset, endOffset: c.EndOffset,
				text: c.Text, provider: it.provider, model: it.model,
			})
		}
	}
	p.items = p.items[:0]
	if len(jobs) == 0 {
		return nil
	}

	groups := make(map[string][]int)
	order := make([]string, 0)
	for i, j := range jobs {
		key := j.model + "|" + j.provider
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		idxs := groups[key]
		model, provider := splitKey(key)
		p.embedAndUpsertGroup(ctx, model, provider, jobs, idxs)
	}
	return nil
}

// embedAndUpsertGroup embeds one (model, provider) batch with retry, falling
// back to per-chunk retries on a batch failure, and logs-and-continues on any
// chunk that still fails rather than aborting the run.
func (p *Pipeline) embedAndUpsertGroup(ctx context.Context, model, provider string, jobs []chunkJob, idxs []int) {
	texts := p.textsForJobs(ctx, jobs, idxs)
	vecs, err := p.embedWithRetry(ctx, model, texts)
	if err == nil && len(vecs) == len(texts) {
		p.upsertVectors(ctx, model, jobs, idxs, vecs)
		return
	}
	p.log.Warn("embedding batch failed, retrying per chunk", "model", model, "provider", provider, "error", errString(err))
	for k, i := range idxs {
		j := jobs[i]
		v, e := p.embedWithRetry(ctx, model, []string{texts[k]})
		if e != nil || len(v) == 0 {
			p.log.Error("embedding chunk failed, skipping", "entity_id", j.entityID, "chunk_index", j.chunkIndex, "error", errString(e))
			continue
		}
		p.upsertVectors(ctx, model, jobs, []int{i}, v)
	}
}

func (p *Pipeline) embedWithRetry(ctx context.Context, model string, texts []string) ([][]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	bo.MaxInterval = 2 * time.Second
	var out [][]float32
	op := func() error {
		v, err := p.emb.Embeddings(ctx, model, texts)
		if err != nil {
			return err
		}
		out = v
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) upsertVectors(ctx context.Context, model string, jobs []chunkJob, idxs []int, vecs [][]float32) {
	chunks := make([]vectorstore.Chunk, 0, len(idxs))
	for k, i := range idxs {
		if k >= len(vecs) {
			break
		}
		j := jobs[i]
		chunks = append(chunks, vectorstore.Chunk{
			EntityID: j.entityID, ChunkIndex: j.chunkIndex,
			StartOffset: j.startOffset, EndOffset: j.endOffset,
			Text: j.text, Vector: vecs[k], ModelID: model,
		})
	}
	if err := p.vs.Upsert(ctx, chunks); err != nil {
		p.log.Error("vector upsert failed", "error", err.Error())
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Translator defines a minimal interface for translating text.
type Translator interface {
	Translate(ctx context.Context, srcLang, tgtLang, text string) (string, error)
}

// textsForJobs returns the processed texts for given job indexes, applying
// translation fallback when enabled.
func (p *Pipeline) textsForJobs(ctx context.Context, jobs []chunkJob, idxs []int) []string {
	out := make([]string, len(idxs))
	useFallback := os.Getenv("CTXENGINE_EMBED_TRANSLATE_FALLBACK") == "1"
	to := "en"
	tmo := 1200 * time.Millisecond
	if v := os.Getenv("CTXENGINE_EMBED_TRANSLATE_TIMEOUT_MS"); v != "" {
		if ms, err := atoi(v); err == nil && ms > 0 {
			tmo = time.Duration(ms) * time.Millisecond
		}
	}
	for k, i := range idxs {
		txt := jobs[i].text
		if useFallback && p.tr != nil && seemsKorean(txt) {
			c2, cancel := context.WithTimeout(ctx, tmo)
			tr, err := p.tr.Translate(c2, "ko", to, txt)
			cancel()
			if err == nil && tr != "" {
				txt = tr
			}
		}
		out[k] = txt
	}
	return out
}

// seemsKorean returns true if the string contains Hangul codepoints.
func seemsKorean(s string) bool {
	for _, r := range s {
		if (r >= 0xAC00 && r <= 0xD7A3) || (r >= 0x1100 && r <= 0x11FF) || (r >= 0x3130 && r <= 0x318F) {
			return true
		}
	}
	return false
}

func atoi(s string) (int, error) {
	n := 0
	sign := 1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i == 0 && (c == '-' || c == '+') {
			if c == '-' {
				sign = -1
			}
			continue
		}
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return sign * n, nil
}

// --- helpers for model/provider/chunk-option selection ---

func getDefaultModel() string {
	if m := os.Getenv("CTXENGINE_EMBEDDING_MODEL"); m != "" {
		return m
	}
	return "text-embedding-3-small"
}

func getDefaultProvider() string {
	if p := os.Getenv("CTXENGINE_EMBEDDING_PROVIDER"); p != "" {
		return p
	}
	return "openai"
}

func chunkOptionsFromEnv() ChunkOptions {
	opt := ChunkOptions{MaxChars: 2000, OverlapChars: 200, MinChunkChars: 200}
	if v := os.Getenv("CTXENGINE_CHUNK_MAX_CHARS"); v != "" {
		if n, err := atoi(v); err == nil && n > 0 {
			opt.MaxChars = n
		}
	}
	if v := os.Getenv("CTXENGINE_CHUNK_OVERLAP_BYTES"); v != "" {
		if n, err := atoi(v); err == nil && n >= 0 {
			opt.OverlapChars = n
		}
	}
	if v := os.Getenv("CTXENGINE_CHUNK_MIN_CHARS"); v != "" {
		if n, err := atoi(v); err == nil && n > 0 {
			opt.MinChunkChars = n
		}
	}
	return opt
}

func pickModelForPath(path, def string) string {
	if isCodePath(path) {
		if m := os.Getenv("CTXENGINE_EMBEDDING_MODEL_CODE"); m != "" {
			return m
		}
	}
	if def != "" {
		return def
	}
	return getDefaultModel()
}

func pickProviderForPath(path, def string) string {
	if isCodePath(path) {
		if p := os.Getenv("CTXENGINE_EMBEDDING_PROVIDER_CODE"); p != "" {
			return p
		}
	}
	if def != "" {
		return def
	}
	return getDefaultProvider()
}

func isCodePath(path string) bool {
	if ex := os.Getenv("CTXENGINE_EMBEDDING_CODE_EXTS"); ex != "" {
		ext := extOf(path)
		for _, e := range splitComma(ex) {
			if "."+e == ext {
				return true
			}
		}
	}
	switch extOf(path) {
	case ".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".rb", ".rs", ".c", ".h", ".cpp", ".cc", ".cs", ".php", ".kt", ".swift", ".m", ".mm", ".scala":
		return true
	default:
		return false
	}
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}

func splitComma(s string) []string {
	out := []string{}
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if start < i {
				out = append(out, trimSpace(s[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t' || s[j-1] == '\n' || s[j-1] == '\r') {
		j--
	}
	return s[i:j]
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

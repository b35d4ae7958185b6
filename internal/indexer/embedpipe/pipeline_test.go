package embedpipe

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"ctxengine/internal/vectorstore"
)

type fakeEmb struct {
	calls   []string
	failFor string
}

func (f *fakeEmb) Embeddings(ctx context.Context, model string, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, model+":"+join(texts))
	if f.failFor != "" {
		for _, t := range texts {
			if strings.Contains(t, f.failFor) {
				return nil, errors.New("simulated provider failure")
			}
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type fakeVS struct{ upserts [][]vectorstore.Chunk }

func (f *fakeVS) Upsert(ctx context.Context, chunks []vectorstore.Chunk) error {
	cp := make([]vectorstore.Chunk, len(chunks))
	copy(cp, chunks)
	f.upserts = append(f.upserts, cp)
	return nil
}

func (f *fakeVS) Search(ctx context.Context, query []float32, k int) ([]vectorstore.Result, error) {
	return nil, nil
}

func (f *fakeVS) DeleteByEntity(ctx context.Context, entityID string) error { return nil }

func join(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func TestPipelineGroupsByModelAndProvider(t *testing.T) {
	oldM := os.Getenv("CTXENGINE_EMBEDDING_MODEL")
	oldMC := os.Getenv("CTXENGINE_EMBEDDING_MODEL_CODE")
	oldP := os.Getenv("CTXENGINE_EMBEDDING_PROVIDER")
	oldPC := os.Getenv("CTXENGINE_EMBEDDING_PROVIDER_CODE")
	t.Cleanup(func() {
		_ = os.Setenv("CTXENGINE_EMBEDDING_MODEL", oldM)
		_ = os.Setenv("CTXENGINE_EMBEDDING_MODEL_CODE", oldMC)
		_ = os.Setenv("CTXENGINE_EMBEDDING_PROVIDER", oldP)
		_ = os.Setenv("CTXENGINE_EMBEDDING_PROVIDER_CODE", oldPC)
	})
	_ = os.Setenv("CTXENGINE_EMBEDDING_MODEL", "text-model")
	_ = os.Setenv("CTXENGINE_EMBEDDING_MODEL_CODE", "code-model")
	_ = os.Setenv("CTXENGINE_EMBEDDING_PROVIDER", "prov-text")
	_ = os.Setenv("CTXENGINE_EMBEDDING_PROVIDER_CODE", "prov-code")

	fe := &fakeEmb{}
	fvs := &fakeVS{}
	p := New(fe, fvs)
	if p == nil {
		t.Fatalf("pipeline nil")
	}

	p.Add("e1", "file.go", "sha1", "code content")
	p.Add("e2", "README.md", "sha2", "text content")
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush error: %v", err)
	}
	if len(fe.calls) != 2 {
		t.Fatalf("expected 2 embedding calls, got %d: %+v", len(fe.calls), fe.calls)
	}
	found := map[string]bool{}
	for _, batch := range fvs.upserts {
		for _, c := range batch {
			found[c.ModelID] = true
		}
	}
	if !found["code-model"] || !found["text-model"] {
		t.Fatalf("model labels mismatch, got=%v", found)
	}
}

func TestPipelineChunksLargeEntity(t *testing.T) {
	fe := &fakeEmb{}
	fvs := &fakeVS{}
	p := New(fe, fvs)
	big := strings.Repeat("x", 2100)
	p.Add("e1", "big.go", "sha1", big)
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush error: %v", err)
	}
	if len(fvs.upserts) == 0 {
		t.Fatalf("expected at least one upsert batch")
	}
	var chunks []vectorstore.Chunk
	for _, b := range fvs.upserts {
		chunks = append(chunks, b...)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected entity to split into multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Fatalf("expected sequential chunk indexes, got %+v", chunks)
		}
	}
}

func TestPipelineSkipsFailingChunkAndWritesRestOfGroup(t *testing.T) {
	fe := &fakeEmb{failFor: "bad"}
	fvs := &fakeVS{}
	p := New(fe, fvs)
	p.Add("e1", "good.go", "sha1", "good content")
	p.Add("e2", "bad.go", "sha2", "bad content")
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("flush error: %v", err)
	}
	var entities = map[string]bool{}
	for _, b := range fvs.upserts {
		for _, c := range b {
			entities[c.EntityID] = true
		}
	}
	if !entities["e1"] {
		t.Fatalf("expected e1 to be embedded, got %v", entities)
	}
	if entities["e2"] {
		t.Fatalf("expected e2 to be skipped after retries failed, got %v", entities)
	}
}

type fakeTr struct{}

func (fakeTr) Translate(ctx context.Context, srcLang, tgtLang, text string) (string, error) {
	return "[EN] " + text, nil
}

func TestTranslateFallbackKorean(t *testing.T) {
	oldF := os.Getenv("CTXENGINE_EMBED_TRANSLATE_FALLBACK")
	oldTO := os.Getenv("CTXENGINE_EMBED_TRANSLATE_TIMEOUT_MS")
	t.Cleanup(func() {
		_ = os.Setenv("CTXENGINE_EMBED_TRANSLATE_FALLBACK", oldF)
		_ = os.Setenv("CTXENGINE_EMBED_TRANSLATE_TIMEOUT_MS", oldTO)
	})
	_ = os.Setenv("CTXENGINE_EMBED_TRANSLATE_FALLBACK", "1")
	_ = os.Setenv("CTXENGINE_EMBED_TRANSLATE_TIMEOUT_MS", "500")

	fe := &fakeEmb{}
	fvs := &fakeVS{}
	p := New(fe, fvs).WithTranslator(fakeTr{})
	if p == nil {
		t.Fatalf("pipeline nil")
	}

	p.Add("e1", "README.md", "s1", "안녕하세요 세계")
	p.Add("e2", "README.md", "s2", "hello world")
	_ = p.Flush(context.Background())

	found := false
	for _, c := range fe.calls {
		if strings.Contains(c, "[EN] ") {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected translated text to be embedded, calls=%v", fe.calls)
	}
}

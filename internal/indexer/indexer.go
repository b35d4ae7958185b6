// Package indexer implements the streaming indexer (C5): it walks a
// project's filesystem, filters via ignore rules, parses files in batches
// through C4, upserts file/symbol entities via C2, persists resumable
// checkpoints, and reconciles deletions. Grounded on
// internal/indexer/indexer.go for the walk/git-listing/binary-detection/
// size-limit helpers, generalized from building an in-memory []FileDoc to
// upserting entities and checkpointing between batches.
package indexer

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ctxengine/internal/ctxerr"
	"ctxengine/internal/entitystore"
	"ctxengine/internal/models"
	"ctxengine/internal/parsefacade"
)

// defaultExcludes is the default set of paths skipped during a walk.
var defaultExcludes = []string{
	"**/node_modules/**", "**/.git/**", "**/dist/**", "**/build/**",
	"**/coverage/**", "**/__pycache__/**", "**/*.min.*", "**/*.bundle.*", "**/.env*",
}

// Options configures one indexing run.
type Options struct {
	Root                string
	Include             []string // default **/*
	Exclude             []string // appended to defaultExcludes
	MaxFileSize         int64    // default 1MB
	MaxEntitiesPerFile  int      // default 200
	BatchSize           int      // default 50
	CheckpointInterval  int      // default every 5 batches
	Force               bool     // ignore content-hash skip
	OnBatchComplete     func(BatchResult)
}

func (o *Options) applyDefaults() {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = 1 << 20
	}
	if o.MaxEntitiesPerFile <= 0 {
		o.MaxEntitiesPerFile = 200
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.CheckpointInterval <= 0 {
		o.CheckpointInterval = 5
	}
}

// BatchResult is reported to Options.OnBatchComplete after each batch.
type BatchResult struct {
	Added, Modified, Unchanged, Deleted []string
	Failed                              []string
}

// Result is the aggregate outcome of Run.
type Result struct {
	Added, Modified, Unchanged, Deleted []string
	SkippedFiles                        []string // exceeded size limit
	FailedFiles                         []string // parse/IO errors
	Errors                              []string
}

// Indexer drives one project's streaming indexing runs.
type Indexer struct {
	Entities   *entitystore.Store
	Parser     *parsefacade.Facade
	Checkpoint CheckpointStore
}

// New returns an Indexer wired to es and the default parser facade.
func New(es *entitystore.Store, cp CheckpointStore) *Indexer {
	return &Indexer{Entities: es, Parser: parsefacade.New(), Checkpoint: cp}
}

// Run performs one indexing pass over opt.Root, identified by sessionID so
// an interrupted run can resume from its last checkpoint.
func (ix *Indexer) Run(ctx context.Context, sessionID string, opt Options) (Result, error) {
	opt.applyDefaults()
	var res Result

	prior, _ := ix.Checkpoint.Latest(ctx, sessionID)
	processedHash := map[string]string{}
	if prior != nil {
		processedHash = prior.ProcessedHash
	}

	files := enumerateFiles(opt.Root)
	files = filterFiles(opt.Root, files, opt.Include, opt.Exclude)

	seenPaths := map[string]bool{}
	batches := chunkStrings(files, opt.BatchSize)

	state := &CheckpointState{ProcessedHash: cloneMap(processedHash)}
	step := 0
	if prior != nil {
		step = prior.StepNumber
	}

	for _, batch := range batches {
		select {
		case <-ctx.Done():
			return res, ctxerr.Wrap(ctxerr.KindCancelled, "indexing cancelled", ctx.Err())
		default:
		}
		var br BatchResult
		for _, abs := range batch {
			rel, _ := filepath.Rel(opt.Root, abs)
			rel = filepath.ToSlash(rel)
			seenPaths[rel] = true

			info, err := os.Stat(abs)
			if err != nil {
				res.FailedFiles = append(res.FailedFiles, rel)
				br.Failed = append(br.Failed, rel)
				continue
			}
			if info.Size() > opt.MaxFileSize {
				res.SkippedFiles = append(res.SkippedFiles, rel)
				continue
			}
			content, err := os.ReadFile(abs)
			if err != nil || looksBinary(content) {
				if err != nil {
					res.FailedFiles = append(res.FailedFiles, rel)
					br.Failed = append(br.Failed, rel)
				}
				continue
			}
			hash := entitystore.ContentHash(string(content))
			if !opt.Force && state.ProcessedHash[rel] == hash {
				res.Unchanged = append(res.Unchanged, rel)
				continue
			}

			changeKind, err := ix.indexFile(ctx, rel, content, opt.MaxEntitiesPerFile)
			if err != nil {
				res.FailedFiles = append(res.FailedFiles, rel)
				res.Errors = append(res.Errors, rel+": "+err.Error())
				br.Failed = append(br.Failed, rel)
				continue
			}
			state.ProcessedHash[rel] = hash
			switch changeKind {
			case changeAdded:
				res.Added = append(res.Added, rel)
				br.Added = append(br.Added, rel)
			case changeModified:
				res.Modified = append(res.Modified, rel)
				br.Modified = append(br.Modified, rel)
			}
		}

		if opt.OnBatchComplete != nil {
			opt.OnBatchComplete(br)
		}
		step++
		if step%opt.CheckpointInterval == 0 {
			if err := ix.Checkpoint.Save(ctx, sessionID, step, *state); err != nil {
				return res, ctxerr.Wrap(ctxerr.KindIO, "persist checkpoint", err)
			}
		}
	}

	deleted, err := ix.reconcileDeletions(ctx, state, seenPaths)
	if err != nil {
		return res, err
	}
	res.Deleted = deleted

	if err := ix.Checkpoint.Clear(ctx, sessionID); err != nil {
		return res, ctxerr.Wrap(ctxerr.KindIO, "clear checkpoint", err)
	}
	return res, nil
}

// IndexFile ingests a single file by path relative to root, used by the
// file watcher (C10) for incremental add/change events outside a full Run.
func (ix *Indexer) IndexFile(ctx context.Context, root, relPath string) error {
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	content, err := os.ReadFile(abs)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindIO, "read file for incremental index", err)
	}
	if looksBinary(content) {
		return nil
	}
	_, err = ix.indexFile(ctx, filepath.ToSlash(relPath), content, 200)
	return err
}

// DeleteFile removes a single path's entities, used by the file watcher
// (C10) on unlink events.
func (ix *Indexer) DeleteFile(ctx context.Context, relPath string) error {
	return ix.Entities.DeleteByFilePath(ctx, filepath.ToSlash(relPath))
}

type changeKind int

const (
	changeNone changeKind = iota
	changeAdded
	changeModified
)

func (ix *Indexer) indexFile(ctx context.Context, relPath string, content []byte, maxEntities int) (changeKind, error) {
	existing, err := ix.Entities.GetByQualifiedName(ctx, relPath)
	kind := changeAdded
	if err == nil && existing != nil {
		kind = changeModified
	}

	parsed, err := ix.Parser.Parse(relPath, content)
	if err != nil {
		return changeNone, err
	}

	overview := buildOverview(parsed)
	if _, err := ix.Entities.Upsert(ctx, entitystore.Input{
		Type:          models.EntityFile,
		Name:          filepath.Base(relPath),
		QualifiedName: relPath,
		Content:       overview,
		FilePath:      relPath,
	}); err != nil {
		return changeNone, err
	}

	n := 0
	for _, sym := range parsed.Symbols {
		if n >= maxEntities {
			break
		}
		n++
		qname := relPath + "::" + sym.QualifiedName
		if _, err := ix.Entities.Upsert(ctx, entitystore.Input{
			Type:          entityTypeOf(sym.Type),
			Name:          sym.Name,
			QualifiedName: qname,
			Content:       sym.Signature + "\n" + sym.Docstring,
			FilePath:      relPath,
			StartLine:     sym.StartLine,
			EndLine:       sym.EndLine,
		}); err != nil {
			return changeNone, err
		}
	}
	return kind, nil
}

func entityTypeOf(k parsefacade.SymbolKind) models.EntityType {
	switch k {
	case parsefacade.KindFunction:
		return models.EntityFunction
	case parsefacade.KindMethod:
		return models.EntityMethod
	case parsefacade.KindClass:
		return models.EntityClass
	case parsefacade.KindInterface:
		return models.EntityInterface
	default:
		return models.EntityModule
	}
}

func buildOverview(p parsefacade.ParseResult) string {
	var b strings.Builder
	if len(p.Exports) > 0 {
		b.WriteString("Exports: " + strings.Join(p.Exports, ", ") + "\n")
	}
	if len(p.Imports) > 0 {
		b.WriteString("Imports: " + strings.Join(p.Imports, ", ") + "\n")
	}
	if b.Len() == 0 {
		b.WriteString("(no exports or imports detected)")
	}
	return b.String()
}

func (ix *Indexer) reconcileDeletions(ctx context.Context, state *CheckpointState, seen map[string]bool) ([]string, error) {
	var deleted []string
	for path := range state.ProcessedHash {
		if seen[path] {
			continue
		}
		if err := ix.Entities.DeleteByFilePath(ctx, path); err != nil {
			return nil, err
		}
		deleted = append(deleted, path)
		delete(state.ProcessedHash, path)
	}
	return deleted, nil
}

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(in); i += size {
		end := i + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[i:end])
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func looksBinary(b []byte) bool {
	n := len(b)
	if n > 8000 {
		n = 8000
	}
	for i := 0; i < n; i++ {
		if b[i] == 0 {
			return true
		}
	}
	return false
}

func enumerateFiles(root string) []string {
	if _, err := os.Stat(filepath.Join(root, ".git")); err == nil {
		if lst, err := gitListFiles(root); err == nil && len(lst) > 0 {
			return lst
		}
	}
	return walkListFiles(root)
}

func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "-C", root, "ls-files", "-co", "--exclude-standard", "-z")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	parts := bytes.Split(out, []byte{0})
	files := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		files = append(files, filepath.Join(root, string(p)))
	}
	return files, nil
}

var defaultSkipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "dist": {}, "build": {}, "coverage": {}, "__pycache__": {},
}

func walkListFiles(root string) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := defaultSkipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files
}

func filterFiles(root string, files, include, exclude []string) []string {
	excludes := append(append([]string{}, defaultExcludes...), exclude...)
	var out []string
	for _, abs := range files {
		rel, _ := filepath.Rel(root, abs)
		rel = filepath.ToSlash(rel)
		if matchAny(rel, excludes) {
			continue
		}
		if len(include) > 0 && !matchAny(rel, include) {
			continue
		}
		out = append(out, abs)
	}
	return out
}

func matchAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		// filepath.Match doesn't support "**"; fall back to a simple
		// substring/suffix check for directory-style globs.
		if strings.Contains(p, "**") {
			frag := strings.ReplaceAll(p, "**/", "")
			frag = strings.ReplaceAll(frag, "/**", "")
			frag = strings.TrimPrefix(frag, "*")
			if frag != "" && strings.Contains(rel, strings.TrimSuffix(frag, "*")) {
				return true
			}
		}
	}
	return false
}

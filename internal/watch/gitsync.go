package watch

import (
	"context"

	"ctxengine/internal/indexer"
	"ctxengine/internal/log"
)

// VcsDiff is the narrow capability core consumes for git-backed sync; core
// never shells out to git itself. An implementation typically wraps
// `git diff --name-status` or an equivalent porcelain command.
type VcsDiff interface {
	ChangedFiles(ctx context.Context, since string) (added, modified, deleted []string, err error)
}

// GitSync reconciles a project against VcsDiff output, dispatching the same
// add/change/unlink batch semantics as the live Watcher.
type GitSync struct {
	root string
	diff VcsDiff
	ix   *indexer.Indexer
	log  *log.Logger
}

func NewGitSync(root string, diff VcsDiff, ix *indexer.Indexer, logger *log.Logger) *GitSync {
	if logger == nil {
		logger = log.New()
	}
	return &GitSync{root: root, diff: diff, ix: ix, log: logger.With(map[string]string{"component": "gitsync"})}
}

// SyncResult mirrors the watcher's batch outcome for one reconciliation.
type SyncResult struct {
	Added, Modified, Deleted []string
	Failed                   map[string]string
}

// Sync fetches the diff since the given commit SHA (or "last_sync"
// sentinel) and dispatches it identically to a debounced watcher batch:
// added/modified paths go through IndexFile, deleted paths through
// DeleteFile. Per-path failures are recorded but never abort the batch.
func (g *GitSync) Sync(ctx context.Context, since string) (SyncResult, error) {
	added, modified, deleted, err := g.diff.ChangedFiles(ctx, since)
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{Failed: make(map[string]string)}
	for _, path := range added {
		if err := g.ix.IndexFile(ctx, g.root, path); err != nil {
			res.Failed[path] = err.Error()
			g.log.Warn("git sync index failed", "path", path, "err", err.Error())
			continue
		}
		res.Added = append(res.Added, path)
	}
	for _, path := range modified {
		if err := g.ix.IndexFile(ctx, g.root, path); err != nil {
			res.Failed[path] = err.Error()
			g.log.Warn("git sync index failed", "path", path, "err", err.Error())
			continue
		}
		res.Modified = append(res.Modified, path)
	}
	for _, path := range deleted {
		if err := g.ix.DeleteFile(ctx, path); err != nil {
			res.Failed[path] = err.Error()
			g.log.Warn("git sync delete failed", "path", path, "err", err.Error())
			continue
		}
		res.Deleted = append(res.Deleted, path)
	}
	return res, nil
}

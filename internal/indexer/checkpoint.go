package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ctxengine/internal/ctxerr"
)

// CheckpointState is the durable state persisted between batches:
// ProcessedHash doubles as both the processed-file list and the
// content-hash comparison base for resumption.
type CheckpointState struct {
	ProcessedHash map[string]string `json:"processed_hash"`
}

// Checkpoint is one persisted run step.
type Checkpoint struct {
	StepNumber    int
	ProcessedHash map[string]string
}

// CheckpointStore persists and resumes indexing runs, keyed by sessionID (one
// project may run several logical indexing sessions, e.g. "index" vs a
// one-off "reindex-subtree").
type CheckpointStore interface {
	Latest(ctx context.Context, sessionID string) (*Checkpoint, error)
	Save(ctx context.Context, sessionID string, step int, state CheckpointState) error
	Clear(ctx context.Context, sessionID string) error
}

// sqliteCheckpoints stores checkpoints in a project's prefixed checkpoints
// table (internal/storage/sqlite.ProjectSchema), using the same
// run_session_id/step_number audit-trail row shape as other execution logs.
type sqliteCheckpoints struct {
	db     *sql.DB
	prefix string
}

// NewSQLiteCheckpoints returns a CheckpointStore backed by db's
// <prefix>checkpoints table.
func NewSQLiteCheckpoints(db *sql.DB, prefix string) CheckpointStore {
	return &sqliteCheckpoints{db: db, prefix: prefix}
}

func (c *sqliteCheckpoints) table() string { return c.prefix + "checkpoints" }

func (c *sqliteCheckpoints) Latest(ctx context.Context, sessionID string) (*Checkpoint, error) {
	row := c.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT step_number, state FROM %s WHERE run_session_id = ? ORDER BY step_number DESC LIMIT 1`,
		c.table()), sessionID)
	var step int
	var raw string
	if err := row.Scan(&step, &raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, ctxerr.Wrap(ctxerr.KindIO, "load checkpoint", err)
	}
	var state CheckpointState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindCorruption, "decode checkpoint state", err)
	}
	if state.ProcessedHash == nil {
		state.ProcessedHash = map[string]string{}
	}
	return &Checkpoint{StepNumber: step, ProcessedHash: state.ProcessedHash}, nil
}

func (c *sqliteCheckpoints) Save(ctx context.Context, sessionID string, step int, state CheckpointState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "encode checkpoint state", err)
	}
	_, err = c.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, run_session_id, step_number, state, description, created_at)
		 VALUES (lower(hex(randomblob(16))), ?, ?, ?, 'indexing checkpoint', datetime('now'))`,
		c.table()), sessionID, step, string(raw))
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindIO, "save checkpoint", err)
	}
	return nil
}

func (c *sqliteCheckpoints) Clear(ctx context.Context, sessionID string) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_session_id = ?`, c.table()), sessionID)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindIO, "clear checkpoint", err)
	}
	return nil
}

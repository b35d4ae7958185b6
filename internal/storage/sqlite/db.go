// Package sqlite is the storage layer (C1): a single embedded SQLite
// database per installation, with per-project table-name-prefixed schemas,
// a transaction wrapper, and versioned idempotent migrations. Follows a
// Migrator/Manager split for schema versioning and a WithTx helper for
// connection setup, with WAL pragmas enabled for concurrent readers
// alongside a writer.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB with the transaction helper every store in ctxengine
// uses for multi-row writes.
type DB struct {
	sql *sql.DB
	mu  sync.Mutex // serializes schema-mutating calls (CREATE TABLE per project)
}

// Open opens (creating if absent) a SQLite database at path with WAL mode,
// foreign keys enforced, and a busy timeout tuned for a single-writer
// per-developer workload. It then applies the global schema migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create db dir: %w", err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	sdb.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one handle
	db := &DB{sql: sdb}
	if err := (Manager{}).UpToLatest(ctx, sdb); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return db, nil
}

// Raw exposes the underlying *sql.DB for read-only callers that need direct
// query access (entitystore, retrieval). Writers should prefer WithTx.
func (d *DB) Raw() *sql.DB { return d.sql }

// Close closes the underlying connection.
func (d *DB) Close() error { return d.sql.Close() }

// WithTx runs fn inside a single BEGIN/COMMIT. On any error returned by fn
// the transaction is rolled back and the error propagates unchanged.
func (d *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// EnsureProject creates (idempotently) the per-project prefixed schema for
// sanitizedID. It does not write to the shared projects table. Safe to
// call on every project open.
func (d *DB) EnsureProject(ctx context.Context, sanitizedID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	prefix := TablePrefix(sanitizedID)
	for i, stmt := range ProjectSchema(prefix) {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: project schema step %d: %w", i, err)
		}
	}
	return nil
}

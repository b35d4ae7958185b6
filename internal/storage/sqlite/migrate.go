package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrator applies the global (non-project-prefixed) schema: the projects
// table itself. Per-project tables are created by ProjectSchema via
// DB.EnsureProject, not here.
type Migrator struct{}

func (m Migrator) Up(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            sanitized_id TEXT NOT NULL UNIQUE,
            path TEXT NOT NULL,
            config TEXT,
            last_indexed_at TEXT,
            active INTEGER NOT NULL DEFAULT 0,
            created_at TEXT NOT NULL
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_name ON projects(name);`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ctxengine/internal/ctxerr"
	"ctxengine/internal/models"
)

// CreateProject inserts a project row and creates its prefixed tables. name
// is sanitized into the table-prefix fragment; a collision on the sanitized
// id is reported as ctxerr.KindConflict.
func (d *DB) CreateProject(ctx context.Context, name, path string, config map[string]string) (*models.Project, error) {
	sanitized, err := SanitizeProjectID(name)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	cfgJSON, err := encodeConfig(config)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInvalidInput, "encode project config", err)
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO projects(id,name,sanitized_id,path,config,active,created_at) VALUES(?,?,?,?,?,0,?)`,
		id, name, sanitized, path, cfgJSON, now.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ctxerr.Wrap(ctxerr.KindConflict, fmt.Sprintf("project name %q already in use (or collides after sanitizing)", name), err)
		}
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "insert project", err)
	}
	if err := d.EnsureProject(ctx, sanitized); err != nil {
		return nil, err
	}
	return &models.Project{ID: id, Name: name, Path: path, Config: config, Active: false, CreatedAt: now}, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && (containsFold(err.Error(), "UNIQUE constraint") || containsFold(err.Error(), "unique constraint"))
}

func containsFold(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := 0; j < len(needle); j++ {
			a, b := haystack[i+j], needle[j]
			if 'A' <= a && a <= 'Z' {
				a += 'a' - 'A'
			}
			if 'A' <= b && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// ListProjects returns all projects ordered by creation time, newest first.
func (d *DB) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id,name,sanitized_id,path,config,last_indexed_at,active,created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "list projects", err)
	}
	defer rows.Close()
	var out []*models.Project
	for rows.Next() {
		p, _, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProject returns a project by id, or ctxerr.KindNotFound.
func (d *DB) GetProject(ctx context.Context, id string) (*models.Project, string, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT id,name,sanitized_id,path,config,last_indexed_at,active,created_at FROM projects WHERE id=?`, id)
	p, sanitized, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, "", ctxerr.New(ctxerr.KindNotFound, "project not found: "+id)
	}
	if err != nil {
		return nil, "", ctxerr.Wrap(ctxerr.KindInternal, "get project", err)
	}
	return p, sanitized, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, string, error) {
	var p models.Project
	var sanitized, cfgJSON, lastIndexed, created string
	if err := row.Scan(&p.ID, &p.Name, &sanitized, &p.Path, &cfgJSON, &nullableString{&lastIndexed}, &p.Active, &created); err != nil {
		return nil, "", err
	}
	p.Config = decodeConfig(cfgJSON)
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		p.CreatedAt = t
	}
	if lastIndexed != "" {
		if t, err := time.Parse(time.RFC3339Nano, lastIndexed); err == nil {
			p.LastIndexedAt = &t
		}
	}
	return &p, sanitized, nil
}

// nullableString scans a SQL NULL into an empty string without disturbing
// non-null text values.
type nullableString struct{ dest *string }

func (n *nullableString) Scan(src any) error {
	if src == nil {
		*n.dest = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*n.dest = v
	case []byte:
		*n.dest = string(v)
	}
	return nil
}

// SetActive marks id as the sole active project, clearing any previous one.
func (d *DB) SetActive(ctx context.Context, id string) error {
	return d.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE projects SET active=0`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE projects SET active=1 WHERE id=?`, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ctxerr.New(ctxerr.KindNotFound, "project not found: "+id)
		}
		return nil
	})
}

// TouchLastIndexed stamps last_indexed_at with the current time.
func (d *DB) TouchLastIndexed(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE projects SET last_indexed_at=? WHERE id=?`, time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

// DeleteProject drops id's row and all of its prefixed tables.
func (d *DB) DeleteProject(ctx context.Context, id string) error {
	_, sanitized, err := d.GetProject(ctx, id)
	if err != nil {
		return err
	}
	prefix := TablePrefix(sanitized)
	return d.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"entities", "entity_fts", "relationships", "sessions", "messages", "messages_fts", "decisions", "decisions_fts", "embeddings", "checkpoints", "query_log", "knowledge", "runs", "execution_logs"} {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+prefix+table); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
		return err
	})
}

// Package entitystore implements the entity store (C2): CRUD and search
// over a project's code/doc/decision/session entities, with content-hash
// dedup and a truncation policy on oversized content. Grounded on
// internal/store/sqlitestore.go's document/knowledge CRUD idiom
// (parameterized SQL, upsert-by-lookup), generalized to the Entity model
// and the per-project table prefix.
package entitystore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"ctxengine/internal/ctxerr"
	"ctxengine/internal/models"
)

const (
	truncateAtLines = 500
	truncateMarker  = "// ... (truncated)"
)

// Store is the entity store for one project, bound to its table prefix.
type Store struct {
	db     *sql.DB
	prefix string
}

// New returns a Store scoped to the per-project tables under prefix (as
// produced by sqlite.TablePrefix).
func New(db *sql.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

func (s *Store) t(name string) string { return s.prefix + name }

// Input is the caller-supplied shape for Create/Upsert.
type Input struct {
	Type          models.EntityType
	Name          string
	QualifiedName string
	Content       string
	Summary       string
	FilePath      string
	StartLine     int
	EndLine       int
	Metadata      models.EntityMetadata
}

// ContentHash computes the content hash used for incremental-skip
// comparison, over the canonical (trailing-whitespace-trimmed) content.
func ContentHash(content string) string {
	normalized := strings.TrimRight(content, " \t\r\n")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// truncate applies the 500-line content truncation policy.
func truncate(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= truncateAtLines {
		return content
	}
	return strings.Join(lines[:truncateAtLines], "\n") + "\n" + truncateMarker
}

// Create inserts a new entity unconditionally, rejecting a qualified_name
// collision as ctxerr.KindConflict.
func (s *Store) Create(ctx context.Context, in Input) (*models.Entity, error) {
	now := time.Now().UTC()
	e := &models.Entity{
		ID:            uuid.NewString(),
		Type:          in.Type,
		Name:          in.Name,
		QualifiedName: in.QualifiedName,
		Content:       truncate(in.Content),
		Summary:       in.Summary,
		FilePath:      in.FilePath,
		StartLine:     in.StartLine,
		EndLine:       in.EndLine,
		Metadata:      in.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	e.ContentHash = ContentHash(e.Content)
	if err := s.insert(ctx, s.db, e); err != nil {
		return nil, err
	}
	return e, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insert(ctx context.Context, ex execer, e *models.Entity) error {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInvalidInput, "encode entity metadata", err)
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO `+s.t("entities")+`
		(id,type,name,qualified_name,content,summary,file_path,start_line,end_line,content_hash,metadata,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, string(e.Type), e.Name, e.QualifiedName, e.Content, e.Summary, e.FilePath, e.StartLine, e.EndLine, e.ContentHash, string(metaJSON),
		e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return ctxerr.Wrap(ctxerr.KindConflict, "qualified_name already exists: "+e.QualifiedName, err)
		}
		return ctxerr.Wrap(ctxerr.KindInternal, "insert entity", err)
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO `+s.t("entity_fts")+`(entity_id,name,summary,content) VALUES (?,?,?,?)`,
		e.ID, e.Name, e.Summary, e.Content)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "index entity fts", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// Upsert creates or updates an entity keyed by qualified_name. If the
// computed content hash matches the stored row, the row is returned
// unchanged without a write.
func (s *Store) Upsert(ctx context.Context, in Input) (*models.Entity, error) {
	truncated := truncate(in.Content)
	hash := ContentHash(truncated)

	existing, err := s.GetByQualifiedName(ctx, in.QualifiedName)
	if err != nil && !ctxerr.Is(err, ctxerr.KindNotFound) {
		return nil, err
	}
	if existing != nil && existing.ContentHash == hash {
		return existing, nil
	}

	now := time.Now().UTC()
	if existing == nil {
		return s.Create(ctx, in)
	}

	metaJSON, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInvalidInput, "encode entity metadata", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE `+s.t("entities")+` SET
		type=?, name=?, content=?, summary=?, file_path=?, start_line=?, end_line=?, content_hash=?, metadata=?, updated_at=?
		WHERE id=?`,
		string(in.Type), in.Name, truncated, in.Summary, in.FilePath, in.StartLine, in.EndLine, hash, string(metaJSON),
		now.Format(time.RFC3339Nano), existing.ID)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "update entity", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE `+s.t("entity_fts")+` SET name=?, summary=?, content=? WHERE entity_id=?`,
		in.Name, in.Summary, truncated, existing.ID)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "update entity fts", err)
	}
	existing.Type, existing.Name, existing.Content, existing.Summary = in.Type, in.Name, truncated, in.Summary
	existing.FilePath, existing.StartLine, existing.EndLine = in.FilePath, in.StartLine, in.EndLine
	existing.ContentHash, existing.Metadata, existing.UpdatedAt = hash, in.Metadata, now
	return existing, nil
}

// UpdateSummary rewrites only an entity's summary, used by the
// summarization pipeline (C7) which never touches content or content_hash.
func (s *Store) UpdateSummary(ctx context.Context, id, summary string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `UPDATE `+s.t("entities")+` SET summary=?, updated_at=? WHERE id=?`, summary, now, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "update entity summary", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ctxerr.New(ctxerr.KindNotFound, "entity not found: "+id)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE `+s.t("entity_fts")+` SET summary=? WHERE entity_id=?`, summary, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "update entity fts summary", err)
	}
	return nil
}

// Get returns an entity by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,type,name,qualified_name,content,summary,file_path,start_line,end_line,content_hash,metadata,created_at,updated_at FROM `+s.t("entities")+` WHERE id=?`, id)
	return scanEntity(row)
}

// GetByQualifiedName returns an entity by its unique qualified name.
func (s *Store) GetByQualifiedName(ctx context.Context, qname string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,type,name,qualified_name,content,summary,file_path,start_line,end_line,content_hash,metadata,created_at,updated_at FROM `+s.t("entities")+` WHERE qualified_name=?`, qname)
	return scanEntity(row)
}

// GetByFile returns every entity whose file_path matches path, e.g. the
// file entity plus all of its symbol entities.
func (s *Store) GetByFile(ctx context.Context, path string) ([]*models.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,type,name,qualified_name,content,summary,file_path,start_line,end_line,content_hash,metadata,created_at,updated_at FROM `+s.t("entities")+` WHERE file_path=? ORDER BY start_line`, path)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "get by file", err)
	}
	defer rows.Close()
	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SearchOptions narrows Search by entity type and result limit.
type SearchOptions struct {
	Type  models.EntityType // empty = any
	Limit int               // <=0 defaults to 20
}

// Search runs FTS over name||summary||content, optionally filtered by type.
func (s *Store) Search(ctx context.Context, query string, opt SearchOptions) ([]*models.Entity, error) {
	limit := opt.Limit
	if limit <= 0 {
		limit = 20
	}
	args := []any{query}
	q := `SELECT e.id,e.type,e.name,e.qualified_name,e.content,e.summary,e.file_path,e.start_line,e.end_line,e.content_hash,e.metadata,e.created_at,e.updated_at
		FROM ` + s.t("entity_fts") + ` f JOIN ` + s.t("entities") + ` e ON e.id = f.entity_id
		WHERE f MATCH ?`
	if opt.Type != "" {
		q += ` AND e.type = ?`
		args = append(args, string(opt.Type))
	}
	q += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "search entities", err)
	}
	defer rows.Close()
	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the total number of entities in the project.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+s.t("entities")).Scan(&n)
	if err != nil {
		return 0, ctxerr.Wrap(ctxerr.KindInternal, "count entities", err)
	}
	return n, nil
}

// Delete removes an entity, its FTS row, its embedding chunks, and every
// relationship with the entity at either end.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.t("embeddings")+` WHERE entity_id=?`, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete entity embeddings", err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM `+s.t("relationships")+` WHERE source_id=? OR target_id=?`, id, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete entity relationships", err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM `+s.t("entity_fts")+` WHERE entity_id=?`, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete entity fts", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+s.t("entities")+` WHERE id=?`, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete entity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ctxerr.New(ctxerr.KindNotFound, "entity not found: "+id)
	}
	return nil
}

// DeleteByFilePath removes every entity rooted at path (file reconciliation
// for C5/C10 when a file disappears).
func (s *Store) DeleteByFilePath(ctx context.Context, path string) error {
	ids, err := s.GetByFile(ctx, path)
	if err != nil {
		return err
	}
	for _, e := range ids {
		if err := s.Delete(ctx, e.ID); err != nil && !ctxerr.Is(err, ctxerr.KindNotFound) {
			return err
		}
	}
	return nil
}

// Page is one page of ListPaginated.
type Page struct {
	Entities []*models.Entity
	NextID   string // empty when there is no further page
}

// ListPaginated returns entities ordered by id, keyset-paginated from
// afterID (empty for the first page).
func (s *Store) ListPaginated(ctx context.Context, afterID string, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	q := `SELECT id,type,name,qualified_name,content,summary,file_path,start_line,end_line,content_hash,metadata,created_at,updated_at FROM ` + s.t("entities")
	var rows *sql.Rows
	var err error
	if afterID == "" {
		rows, err = s.db.QueryContext(ctx, q+` ORDER BY id LIMIT ?`, pageSize+1)
	} else {
		rows, err = s.db.QueryContext(ctx, q+` WHERE id > ? ORDER BY id LIMIT ?`, afterID, pageSize+1)
	}
	if err != nil {
		return Page{}, ctxerr.Wrap(ctxerr.KindInternal, "list entities paginated", err)
	}
	defer rows.Close()
	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return Page{}, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	next := ""
	if len(out) > pageSize {
		next = out[pageSize].ID
		out = out[:pageSize]
	}
	return Page{Entities: out, NextID: next}, nil
}

func scanEntity(row interface{ Scan(...any) error }) (*models.Entity, error) {
	var e models.Entity
	var typ, created, updated, metaJSON string
	var summary, filePath, contentHash sql.NullString
	if err := row.Scan(&e.ID, &typ, &e.Name, &e.QualifiedName, &e.Content, &summary, &filePath, &e.StartLine, &e.EndLine, &contentHash, &metaJSON, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, ctxerr.New(ctxerr.KindNotFound, "entity not found")
		}
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "scan entity", err)
	}
	e.Type = models.EntityType(typ)
	e.Summary = summary.String
	e.FilePath = filePath.String
	e.ContentHash = contentHash.String
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		e.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		e.UpdatedAt = t
	}
	return &e, nil
}

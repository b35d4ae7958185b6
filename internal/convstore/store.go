// Package convstore implements the conversation store (C8): sessions,
// messages, and decisions for one project, plus the two-stage decision
// extraction pipeline. Follows the same CRUD idiom as the rest of the
// storage layer (parameterized SQL, explicit transactions for multi-row
// side effects, TTL cleanup by julianday arithmetic), generalized to the
// Session/Message/Decision models and the per-project table prefix.
package convstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"ctxengine/internal/ctxerr"
	"ctxengine/internal/entitystore"
	"ctxengine/internal/models"
)

// Store is the conversation store for one project, bound to its table
// prefix. It also mirrors decisions into the entity store so they
// participate in graph retrieval.
type Store struct {
	db       *sql.DB
	prefix   string
	entities *entitystore.Store
}

// New returns a Store scoped to the per-project tables under prefix.
func New(db *sql.DB, prefix string, entities *entitystore.Store) *Store {
	return &Store{db: db, prefix: prefix, entities: entities}
}

func (s *Store) t(name string) string { return s.prefix + name }

// CreateSession starts a new active conversation session.
func (s *Store) CreateSession(ctx context.Context, name string) (*models.Session, error) {
	now := time.Now().UTC()
	sess := &models.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    models.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.t("sessions")+`
		(id,name,status,summary,message_count,created_at,updated_at,archived_at) VALUES (?,?,?,?,?,?,?,?)`,
		sess.ID, sess.Name, string(sess.Status), sess.Summary, sess.MessageCount,
		sess.CreatedAt.Format(time.RFC3339Nano), sess.UpdatedAt.Format(time.RFC3339Nano), nil)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "create session", err)
	}
	return sess, nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,status,summary,message_count,created_at,updated_at,archived_at FROM `+s.t("sessions")+` WHERE id=?`, id)
	return scanSession(row)
}

// UpdateSessionStatus transitions a session's lifecycle status. A session
// that has reached "summarized" is terminal: any attempt to set status back
// to "active" fails with KindInvalidInput. archived_at is set iff the new
// status is not "active".
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	existing, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == models.SessionSummarized && status == models.SessionActive {
		return ctxerr.New(ctxerr.KindInvalidInput, "session is summarized and cannot be reactivated")
	}
	now := time.Now().UTC()
	var archivedAt any
	if status != models.SessionActive {
		if existing.ArchivedAt != nil {
			archivedAt = existing.ArchivedAt.Format(time.RFC3339Nano)
		} else {
			archivedAt = now.Format(time.RFC3339Nano)
		}
	}
	_, err = s.db.ExecContext(ctx, `UPDATE `+s.t("sessions")+` SET status=?, updated_at=?, archived_at=? WHERE id=?`,
		string(status), now.Format(time.RFC3339Nano), archivedAt, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "update session status", err)
	}
	return nil
}

// SetSessionSummary records a generated summary, typically alongside
// transitioning to "summarized".
func (s *Store) SetSessionSummary(ctx context.Context, id, summary string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE `+s.t("sessions")+` SET summary=?, updated_at=? WHERE id=?`,
		summary, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "set session summary", err)
	}
	return nil
}

// DeleteSession removes a session and cascades its messages and decisions.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "begin delete session tx", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.t("decisions_fts")+` WHERE decision_id IN (SELECT id FROM `+s.t("decisions")+` WHERE session_id=?)`, id); err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete session decisions fts", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.t("decisions")+` WHERE session_id=?`, id); err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete session decisions", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.t("messages_fts")+` WHERE message_id IN (SELECT id FROM `+s.t("messages")+` WHERE session_id=?)`, id); err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete session messages fts", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.t("messages")+` WHERE session_id=?`, id); err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete session messages", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.t("checkpoints")+` WHERE run_session_id=?`, id); err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete session checkpoints", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM `+s.t("sessions")+` WHERE id=?`, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ctxerr.New(ctxerr.KindNotFound, "session not found: "+id)
	}
	return tx.Commit()
}

// MessageOptions controls AddMessage's auto-archive side effect.
type MessageOptions struct {
	MaxActiveMessages int
	AutoSummarize     bool
}

// AddMessage inserts a message, increments the owning session's
// message_count, and refreshes its updated_at. When the new count reaches
// MaxActiveMessages and AutoSummarize is set, the session is auto-archived.
func (s *Store) AddMessage(ctx context.Context, sessionID string, role models.MessageRole, content string, metadata map[string]string, opt MessageOptions) (*models.Message, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	metaJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInvalidInput, "encode message metadata", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "begin add message tx", err)
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO `+s.t("messages")+`(id,session_id,role,content,metadata,created_at) VALUES (?,?,?,?,?,?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, string(metaJSON), msg.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "insert message", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+s.t("messages_fts")+`(message_id,content) VALUES (?,?)`, msg.ID, msg.Content); err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "index message fts", err)
	}
	newCount := sess.MessageCount + 1
	now := time.Now().UTC()
	shouldArchive := opt.AutoSummarize && opt.MaxActiveMessages > 0 && newCount >= opt.MaxActiveMessages && sess.Status == models.SessionActive
	if shouldArchive {
		archivedAt := now.Format(time.RFC3339Nano)
		_, err = tx.ExecContext(ctx, `UPDATE `+s.t("sessions")+` SET message_count=?, updated_at=?, status=?, archived_at=? WHERE id=?`,
			newCount, now.Format(time.RFC3339Nano), string(models.SessionArchived), archivedAt, sessionID)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE `+s.t("sessions")+` SET message_count=?, updated_at=? WHERE id=?`,
			newCount, now.Format(time.RFC3339Nano), sessionID)
	}
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "update session message count", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "commit add message", err)
	}
	return msg, nil
}

// ListMessages returns a session's messages in created_at order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,session_id,role,content,metadata,created_at FROM `+s.t("messages")+` WHERE session_id=? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "list messages", err)
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchMessages runs FTS over message content, optionally scoped to one
// session, falling back to a LIKE scan if the FTS table is unavailable.
func (s *Store) SearchMessages(ctx context.Context, query, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	args := []any{query}
	q := `SELECT m.id,m.session_id,m.role,m.content,m.metadata,m.created_at
		FROM ` + s.t("messages_fts") + ` f JOIN ` + s.t("messages") + ` m ON m.id = f.message_id
		WHERE f MATCH ?`
	if sessionID != "" {
		q += ` AND m.session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return s.searchMessagesLike(ctx, query, sessionID, limit)
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) searchMessagesLike(ctx context.Context, query, sessionID string, limit int) ([]*models.Message, error) {
	args := []any{"%" + query + "%"}
	q := `SELECT id,session_id,role,content,metadata,created_at FROM ` + s.t("messages") + ` WHERE content LIKE ?`
	if sessionID != "" {
		q += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "search messages (like fallback)", err)
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMessage removes a message and decrements its session's message_count.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	row := s.db.QueryRowContext(ctx, `SELECT session_id FROM `+s.t("messages")+` WHERE id=?`, id)
	var sessionID string
	if err := row.Scan(&sessionID); err != nil {
		if err == sql.ErrNoRows {
			return ctxerr.New(ctxerr.KindNotFound, "message not found: "+id)
		}
		return ctxerr.Wrap(ctxerr.KindInternal, "lookup message session", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "begin delete message tx", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.t("messages_fts")+` WHERE message_id=?`, id); err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete message fts", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.t("messages")+` WHERE id=?`, id); err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete message", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `UPDATE `+s.t("sessions")+` SET message_count = MAX(0, message_count - 1), updated_at=? WHERE id=?`, now, sessionID); err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "decrement session message count", err)
	}
	return tx.Commit()
}

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	var sess models.Session
	var status, created, updated string
	var summary, archivedAt sql.NullString
	if err := row.Scan(&sess.ID, &sess.Name, &status, &summary, &sess.MessageCount, &created, &updated, &archivedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ctxerr.New(ctxerr.KindNotFound, "session not found")
		}
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "scan session", err)
	}
	sess.Status = models.SessionStatus(status)
	sess.Summary = summary.String
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		sess.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		sess.UpdatedAt = t
	}
	if archivedAt.Valid && archivedAt.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, archivedAt.String); err == nil {
			sess.ArchivedAt = &t
		}
	}
	return &sess, nil
}

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	var m models.Message
	var role, created, metaJSON string
	if err := row.Scan(&m.ID, &m.SessionID, &role, &m.Content, &metaJSON, &created); err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "scan message", err)
	}
	m.Role = models.MessageRole(role)
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &m.Metadata)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		m.CreatedAt = t
	}
	return &m, nil
}

// decisionNameMaxLen truncates a mirrored decision entity's display name.
const decisionNameMaxLen = 50

func truncateName(s string) string {
	if len(s) <= decisionNameMaxLen {
		return s
	}
	return strings.TrimSpace(s[:decisionNameMaxLen])
}

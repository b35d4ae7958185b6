package convstore

import (
	"context"

	"ctxengine/internal/ctxerr"
)

// CleanupExpiredSessions deletes non-active (archived or summarized)
// sessions whose updated_at is older than ttlDays, cascading their
// messages, decisions, and checkpoints. Active sessions are never expired.
func (s *Store) CleanupExpiredSessions(ctx context.Context, ttlDays int) (int, error) {
	if ttlDays <= 0 {
		return 0, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM `+s.t("sessions")+`
		WHERE status != 'active' AND (julianday('now') - julianday(updated_at)) >= ?`, ttlDays)
	if err != nil {
		return 0, ctxerr.Wrap(ctxerr.KindInternal, "select expired sessions", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, ctxerr.Wrap(ctxerr.KindInternal, "scan expired session id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := s.DeleteSession(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

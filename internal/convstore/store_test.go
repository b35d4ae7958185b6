package convstore

import (
	"context"
	"path/filepath"
	"testing"

	"ctxengine/internal/entitystore"
	"ctxengine/internal/models"
	ctxsqlite "ctxengine/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := ctxsqlite.Open(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Skip("sqlite not available:", err)
	}
	t.Cleanup(func() { db.Close() })
	sanitized, err := ctxsqlite.SanitizeProjectID("demo")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.EnsureProject(context.Background(), sanitized); err != nil {
		t.Fatal(err)
	}
	prefix := ctxsqlite.TablePrefix(sanitized)
	es := entitystore.New(db.Raw(), prefix)
	return New(db.Raw(), prefix, es)
}

func TestCreateSessionAndAddMessageIncrementsCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "demo session")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != models.SessionActive {
		t.Fatalf("expected new session active, got %v", sess.Status)
	}
	if _, err := s.AddMessage(ctx, sess.ID, models.RoleUser, "hello", nil, MessageOptions{}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.MessageCount != 1 {
		t.Fatalf("expected message_count=1, got %d", got.MessageCount)
	}
}

func TestAddMessageAutoArchivesAtMaxActiveMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "auto-archive")
	opt := MessageOptions{MaxActiveMessages: 2, AutoSummarize: true}
	if _, err := s.AddMessage(ctx, sess.ID, models.RoleUser, "one", nil, opt); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddMessage(ctx, sess.ID, models.RoleAssistant, "two", nil, opt); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.SessionArchived {
		t.Fatalf("expected session auto-archived, got %v", got.Status)
	}
	if got.ArchivedAt == nil {
		t.Fatalf("expected archived_at set")
	}
}

func TestSummarizedSessionCannotReactivate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "terminal")
	if err := s.UpdateSessionStatus(ctx, sess.ID, models.SessionSummarized); err != nil {
		t.Fatalf("UpdateSessionStatus to summarized: %v", err)
	}
	err := s.UpdateSessionStatus(ctx, sess.ID, models.SessionActive)
	if err == nil {
		t.Fatal("expected reactivation of summarized session to fail")
	}
}

func TestListMessagesOrderedByCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "ordering")
	for _, c := range []string{"first", "second", "third"} {
		if _, err := s.AddMessage(ctx, sess.ID, models.RoleUser, c, nil, MessageOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err := s.ListMessages(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].Content != "first" || msgs[2].Content != "third" {
		t.Fatalf("unexpected order: %+v", msgs)
	}
}

func TestDeleteSessionLeavesNoOrphans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "to-delete")
	msg, err := s.AddMessage(ctx, sess.ID, models.RoleUser, "we decided to use sqlite", nil, MessageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateDecision(ctx, DecisionInput{SessionID: sess.ID, MessageID: msg.ID, Description: "use sqlite"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if msgs, err := s.ListMessages(ctx, sess.ID); err != nil || len(msgs) != 0 {
		t.Fatalf("expected no orphan messages, got %+v, err=%v", msgs, err)
	}
	if decs, err := s.SearchDecisions(ctx, "sqlite", 10); err != nil || len(decs) != 0 {
		t.Fatalf("expected no orphan decisions, got %+v, err=%v", decs, err)
	}
}

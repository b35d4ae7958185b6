package convstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"ctxengine/internal/ctxerr"
	"ctxengine/internal/entitystore"
	"ctxengine/internal/models"
)

// decisionPhrases gates candidate messages before the costlier LLM parse
// stage, the cheap first stage of the two-stage extraction pipeline.
var decisionPhrases = regexp.MustCompile(`(?i)\b(we will|we decided|we should|we agreed|let's use|let's go with|the decision is|the plan is|i'll use|chose|choosing)\b`)

// PatternGate reports whether content contains a decision-signaling phrase,
// the cheap first stage of the two-stage extraction pipeline.
func PatternGate(content string) bool {
	return decisionPhrases.MatchString(content)
}

// DecisionProvider sends a structured extraction prompt to an LLM and
// returns its raw textual response.
type DecisionProvider interface {
	IsAvailable(ctx context.Context) bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// DecisionCandidate is one parsed DECISION/CONTEXT/ALTERNATIVES block.
type DecisionCandidate struct {
	Description  string
	Context      string
	Alternatives []string
}

const decisionExtractionPrompt = `You extract engineering decisions from a chat message. Respond with one block per decision in this exact form, repeated as needed:

DECISION: <one-sentence description>
CONTEXT: <why, optional, may be blank>
ALTERNATIVES: <comma-separated alternatives considered, optional, may be blank>

If the message contains no decisions, respond with exactly: NO_DECISIONS

Message:
%s`

// DecisionExtractor runs the LLM parse stage of decision extraction.
type DecisionExtractor struct {
	Provider DecisionProvider
}

// Extract sends content to the provider and parses its structured response.
// A NO_DECISIONS response, or an unavailable provider, yields an empty list.
func (e *DecisionExtractor) Extract(ctx context.Context, content string) ([]DecisionCandidate, error) {
	if e.Provider == nil || !e.Provider.IsAvailable(ctx) {
		return nil, nil
	}
	raw, err := e.Provider.Complete(ctx, sprintfPrompt(content))
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindProviderUnavailable, "decision extraction", err)
	}
	return ParseDecisionBlocks(raw), nil
}

func sprintfPrompt(content string) string {
	return strings.Replace(decisionExtractionPrompt, "%s", content, 1)
}

// ParseDecisionBlocks parses the provider's DECISION/CONTEXT/ALTERNATIVES
// response format into candidates. An empty response or NO_DECISIONS
// (case-insensitive) yields nil.
func ParseDecisionBlocks(raw string) []DecisionCandidate {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "NO_DECISIONS") {
		return nil
	}
	var out []DecisionCandidate
	var cur *DecisionCandidate
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "DECISION:"):
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &DecisionCandidate{Description: strings.TrimSpace(line[len("DECISION:"):])}
		case strings.HasPrefix(strings.ToUpper(line), "CONTEXT:") && cur != nil:
			cur.Context = strings.TrimSpace(line[len("CONTEXT:"):])
		case strings.HasPrefix(strings.ToUpper(line), "ALTERNATIVES:") && cur != nil:
			alts := strings.TrimSpace(line[len("ALTERNATIVES:"):])
			if alts != "" {
				for _, a := range strings.Split(alts, ",") {
					if a = strings.TrimSpace(a); a != "" {
						cur.Alternatives = append(cur.Alternatives, a)
					}
				}
			}
		}
	}
	if cur != nil && cur.Description != "" {
		out = append(out, *cur)
	}
	return out
}

// DecisionInput is the caller-supplied shape for CreateDecision.
type DecisionInput struct {
	SessionID        string
	MessageID        string
	Description      string
	Context          string
	Alternatives     []string
	RelatedEntityIDs []string
}

// CreateDecision stores a decision and mirrors it as a "decision"-type
// entity (qualified_name "decision::<id>") so it participates in graph
// retrieval.
func (s *Store) CreateDecision(ctx context.Context, in DecisionInput) (*models.Decision, error) {
	d := &models.Decision{
		ID:               uuid.NewString(),
		SessionID:        in.SessionID,
		MessageID:        in.MessageID,
		Description:      in.Description,
		Context:          in.Context,
		Alternatives:     in.Alternatives,
		RelatedEntityIDs: in.RelatedEntityIDs,
		Status:           models.DecisionOpen,
		CreatedAt:        time.Now().UTC(),
	}
	altsJSON, err := json.Marshal(d.Alternatives)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInvalidInput, "encode decision alternatives", err)
	}
	relJSON, err := json.Marshal(d.RelatedEntityIDs)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInvalidInput, "encode decision related entities", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.t("decisions")+`
		(id,session_id,message_id,description,context,alternatives,related_entity_ids,status,superseded_by,created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.SessionID, nullableString(d.MessageID), d.Description, d.Context, string(altsJSON), string(relJSON),
		string(d.Status), nil, d.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "insert decision", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.t("decisions_fts")+`(decision_id,description,context) VALUES (?,?,?)`,
		d.ID, d.Description, d.Context)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "index decision fts", err)
	}
	if s.entities != nil {
		_, err = s.entities.Create(ctx, decisionEntityInput(d))
		if err != nil {
			return nil, ctxerr.Wrap(ctxerr.KindInternal, "mirror decision entity", err)
		}
	}
	return d, nil
}

// decisionEntityInput builds the entitystore.Input that mirrors a Decision
// as a graph-retrievable entity.
func decisionEntityInput(d *models.Decision) entitystore.Input {
	return entitystore.Input{
		Type:          models.EntityDecision,
		Name:          truncateName(d.Description),
		QualifiedName: "decision::" + d.ID,
		Content:       d.Description,
		Summary:       d.Context,
	}
}

// SupersedeDecision marks a decision superseded by another.
func (s *Store) SupersedeDecision(ctx context.Context, id, supersededBy string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE `+s.t("decisions")+` SET status=?, superseded_by=? WHERE id=?`,
		string(models.DecisionSuperseded), supersededBy, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "supersede decision", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ctxerr.New(ctxerr.KindNotFound, "decision not found: "+id)
	}
	return nil
}

// SearchDecisions runs FTS over description/context, falling back to a LIKE
// scan if the FTS table is unavailable.
func (s *Store) SearchDecisions(ctx context.Context, query string, limit int) ([]*models.Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT d.id,d.session_id,d.message_id,d.description,d.context,d.alternatives,d.related_entity_ids,d.status,d.superseded_by,d.created_at
		FROM `+s.t("decisions_fts")+` f JOIN `+s.t("decisions")+` d ON d.id = f.decision_id
		WHERE f MATCH ? ORDER BY rank LIMIT ?`, query, limit)
	if err != nil {
		return s.searchDecisionsLike(ctx, query, limit)
	}
	defer rows.Close()
	var out []*models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) searchDecisionsLike(ctx context.Context, query string, limit int) ([]*models.Decision, error) {
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT id,session_id,message_id,description,context,alternatives,related_entity_ids,status,superseded_by,created_at
		FROM `+s.t("decisions")+` WHERE description LIKE ? OR context LIKE ? ORDER BY created_at DESC LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "search decisions (like fallback)", err)
	}
	defer rows.Close()
	var out []*models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDecision(row interface{ Scan(...any) error }) (*models.Decision, error) {
	var d models.Decision
	var messageID, context, supersededBy sql.NullString
	var altsJSON, relJSON, status, created string
	if err := row.Scan(&d.ID, &d.SessionID, &messageID, &d.Description, &context, &altsJSON, &relJSON, &status, &supersededBy, &created); err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "scan decision", err)
	}
	d.MessageID = messageID.String
	d.Context = context.String
	d.SupersededBy = supersededBy.String
	d.Status = models.DecisionStatus(status)
	if altsJSON != "" {
		_ = json.Unmarshal([]byte(altsJSON), &d.Alternatives)
	}
	if relJSON != "" {
		_ = json.Unmarshal([]byte(relJSON), &d.RelatedEntityIDs)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		d.CreatedAt = t
	}
	return &d, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

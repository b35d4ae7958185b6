// Package graphstore implements the relationship store and bounded graph
// traversal (C3): directed weighted edges between entities, and a
// breadth-first neighborhood query with a mandatory visited set. SQL
// access style follows internal/entitystore's parameterized-SQL CRUD
// idiom.
package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"ctxengine/internal/ctxerr"
	"ctxengine/internal/models"
)

// Store is the relationship store for one project.
type Store struct {
	db     *sql.DB
	prefix string
}

// New returns a Store scoped to the per-project tables under prefix.
func New(db *sql.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

func (s *Store) t(name string) string { return s.prefix + name }

// Input is the caller-supplied shape for Create.
type Input struct {
	SourceID string
	TargetID string
	Type     models.RelationshipType
	Weight   float64
	Metadata map[string]string
}

// Create inserts a directed edge. Both endpoints must already exist (FK
// enforced); (source, target, type) must be unique.
func (s *Store) Create(ctx context.Context, in Input) (*models.Relationship, error) {
	weight := in.Weight
	if weight == 0 {
		weight = 1.0
	}
	metaJSON, _ := json.Marshal(in.Metadata)
	r := &models.Relationship{ID: uuid.NewString(), SourceID: in.SourceID, TargetID: in.TargetID, Type: in.Type, Weight: weight}
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.t("relationships")+`(id,source_id,target_id,type,weight,metadata) VALUES (?,?,?,?,?,?)`,
		r.ID, r.SourceID, r.TargetID, string(r.Type), r.Weight, string(metaJSON))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ctxerr.Wrap(ctxerr.KindConflict, "relationship already exists", err)
		}
		if isFKViolation(err) {
			return nil, ctxerr.Wrap(ctxerr.KindInvalidInput, "relationship endpoint does not exist", err)
		}
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "insert relationship", err)
	}
	return r, nil
}

func isUniqueViolation(err error) bool { return containsAny(err, "unique constraint") }
func isFKViolation(err error) bool     { return containsAny(err, "foreign key") }

func containsAny(err error, needle string) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	low := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		low[i] = c
	}
	return sContains(string(low), needle)
}

func sContains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// Direction constrains GetForEntity to incoming, outgoing, or both.
type Direction string

const (
	DirIn   Direction = "in"
	DirOut  Direction = "out"
	DirBoth Direction = "both"
)

// EdgeOptions narrows GetForEntity.
type EdgeOptions struct {
	Types     []models.RelationshipType
	MinWeight float64
	Limit     int
}

// GetForEntity returns edges touching id in the given direction.
func (s *Store) GetForEntity(ctx context.Context, id string, dir Direction, opt EdgeOptions) ([]*models.Relationship, error) {
	where, args := edgeWhere(id, dir, opt)
	limit := opt.Limit
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id,source_id,target_id,type,weight FROM ` + s.t("relationships") + ` WHERE ` + where + ` ORDER BY weight DESC LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "get relationships for entity", err)
	}
	defer rows.Close()
	var out []*models.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func edgeWhere(id string, dir Direction, opt EdgeOptions) (string, []any) {
	var clause string
	var args []any
	switch dir {
	case DirIn:
		clause = "target_id = ?"
		args = append(args, id)
	case DirOut:
		clause = "source_id = ?"
		args = append(args, id)
	default:
		clause = "(source_id = ? OR target_id = ?)"
		args = append(args, id, id)
	}
	if len(opt.Types) > 0 {
		clause += " AND type IN (" + placeholders(len(opt.Types)) + ")"
		for _, ty := range opt.Types {
			args = append(args, string(ty))
		}
	}
	if opt.MinWeight > 0 {
		clause += " AND weight >= ?"
		args = append(args, opt.MinWeight)
	}
	return clause, args
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

func scanRelationship(rows *sql.Rows) (*models.Relationship, error) {
	var r models.Relationship
	var typ string
	if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &typ, &r.Weight); err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "scan relationship", err)
	}
	r.Type = models.RelationshipType(typ)
	return &r, nil
}

// Count returns the total number of relationships in the project.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+s.t("relationships")).Scan(&n); err != nil {
		return 0, ctxerr.Wrap(ctxerr.KindInternal, "count relationships", err)
	}
	return n, nil
}

// GetAverageDegree returns the mean degree, 2 * total edges / distinct
// entities touched by an edge, or 0 if there are none.
func (s *Store) GetAverageDegree(ctx context.Context) (float64, error) {
	var edges, nodes int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+s.t("relationships")).Scan(&edges); err != nil {
		return 0, ctxerr.Wrap(ctxerr.KindInternal, "count edges", err)
	}
	if edges == 0 {
		return 0, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT id) FROM (SELECT source_id AS id FROM `+s.t("relationships")+` UNION SELECT target_id FROM `+s.t("relationships")+`)`)
	if err := row.Scan(&nodes); err != nil {
		return 0, ctxerr.Wrap(ctxerr.KindInternal, "count nodes", err)
	}
	if nodes == 0 {
		return 0, nil
	}
	return float64(edges*2) / float64(nodes), nil
}

// StatsByType returns a per-type edge count.
func (s *Store) StatsByType(ctx context.Context) (map[models.RelationshipType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(1) FROM `+s.t("relationships")+` GROUP BY type`)
	if err != nil {
		return nil, ctxerr.Wrap(ctxerr.KindInternal, "stats by type", err)
	}
	defer rows.Close()
	out := map[models.RelationshipType]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[models.RelationshipType(typ)] = n
	}
	return out, rows.Err()
}

// Neighborhood is the result of GetNeighborhood.
type Neighborhood struct {
	Entities      []string // entity ids, BFS order
	Relationships []*models.Relationship
}

// GetNeighborhood does a breadth-first search from entity out to maxDepth
// hops, honoring dir and an optional type filter. Ties among equal-depth
// candidates are broken by higher weight, then lexicographic id. A mandatory
// visited set guarantees termination on cyclic graphs and that no node
// appears twice.
func (s *Store) GetNeighborhood(ctx context.Context, entity string, maxDepth int, dir Direction, types []models.RelationshipType) (Neighborhood, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}
	visited := map[string]bool{entity: true}
	order := []string{entity}
	var edges []*models.Relationship
	frontier := []string{entity}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		type candidate struct {
			id     string
			weight float64
			edge   *models.Relationship
		}
		var next []candidate
		for _, id := range frontier {
			rels, err := s.GetForEntity(ctx, id, dir, EdgeOptions{Types: types, Limit: 1000})
			if err != nil {
				return Neighborhood{}, err
			}
			for _, r := range rels {
				other := r.TargetID
				if other == id {
					other = r.SourceID
				}
				if visited[other] {
					continue
				}
				next = append(next, candidate{id: other, weight: r.Weight, edge: r})
			}
		}
		sort.Slice(next, func(i, j int) bool {
			if next[i].weight != next[j].weight {
				return next[i].weight > next[j].weight
			}
			return next[i].id < next[j].id
		})
		var frontierNext []string
		for _, c := range next {
			if visited[c.id] {
				continue
			}
			visited[c.id] = true
			order = append(order, c.id)
			edges = append(edges, c.edge)
			frontierNext = append(frontierNext, c.id)
		}
		frontier = frontierNext
	}
	return Neighborhood{Entities: order, Relationships: edges}, nil
}

// DeleteForEntity removes every edge touching id, called when the entity
// itself is deleted so no dangling edge survives it.
func (s *Store) DeleteForEntity(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.t("relationships")+` WHERE source_id=? OR target_id=?`, id, id)
	if err != nil {
		return ctxerr.Wrap(ctxerr.KindInternal, "delete relationships for entity", err)
	}
	return nil
}

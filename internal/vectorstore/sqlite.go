package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// SQLiteVS implements VectorStore over one project's prefixed embeddings
// table (internal/storage/sqlite.ProjectSchema), keyed by (entity_id,
// chunk_index) as that table's primary key already enforces.
type SQLiteVS struct {
	db     *sql.DB
	prefix string
}

// NewSQLite returns a VectorStore scoped to prefix's embeddings table.
func NewSQLite(db *sql.DB, prefix string) VectorStore { return SQLiteVS{db: db, prefix: prefix} }

func (s SQLiteVS) table() string { return s.prefix + "embeddings" }

func (s SQLiteVS) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 || s.db == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, c := range chunks {
		vecJSON, err := json.Marshal(c.Vector)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.table()+`
			(entity_id,chunk_index,start_offset,end_offset,text,vector,model_id,created_at)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(entity_id,chunk_index) DO UPDATE SET
				start_offset=excluded.start_offset, end_offset=excluded.end_offset,
				text=excluded.text, vector=excluded.vector, model_id=excluded.model_id`,
			c.EntityID, c.ChunkIndex, c.StartOffset, c.EndOffset, c.Text, string(vecJSON), c.ModelID, now)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s SQLiteVS) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if s.db == nil || len(query) == 0 || k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, chunk_index, text, vector FROM `+s.table())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make([]Result, 0, k*2)
	for rows.Next() {
		var entityID, text, vecStr string
		var chunkIdx int
		if err := rows.Scan(&entityID, &chunkIdx, &text, &vecStr); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecStr), &vec); err != nil || len(vec) != len(query) {
			continue
		}
		score := cosine(query, vec)
		results = append(results, Result{EntityID: entityID, ChunkIndex: chunkIdx, Text: text, Score: float64(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	quickSelectTopK(results, k)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s SQLiteVS) DeleteByEntity(ctx context.Context, entityID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table()+` WHERE entity_id=?`, entityID)
	return err
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (sqrt(na) * sqrt(nb))
}

func sqrt(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 6; i++ {
		z = 0.5 * (z + x/z)
	}
	return z
}

// quickSelectTopK partially sorts the slice so the first k are the highest scores.
func quickSelectTopK(a []Result, k int) {
	if k <= 0 || len(a) <= k {
		for i := 0; i < len(a); i++ {
			for j := i + 1; j < len(a); j++ {
				if a[j].Score > a[i].Score {
					a[i], a[j] = a[j], a[i]
				}
			}
		}
		return
	}
	nthElement(a, k)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k && j < len(a); j++ {
			if a[j].Score > a[i].Score {
				a[i], a[j] = a[j], a[i]
			}
		}
	}
}

func nthElement(a []Result, k int) {
	var qs func(l, r, k int)
	qs = func(l, r, k int) {
		if l >= r {
			return
		}
		i, j := l, r
		pivot := a[(l+r)/2].Score
		for i <= j {
			for a[i].Score > pivot {
				i++
			}
			for a[j].Score < pivot {
				j--
			}
			if i <= j {
				a[i], a[j] = a[j], a[i]
				i++
				j--
			}
		}
		if k <= j {
			qs(l, j, k)
		} else if k >= i {
			qs(i, r, k)
		}
	}
	if k >= len(a) {
		k = len(a) - 1
	}
	if k >= 0 {
		qs(0, len(a)-1, k)
	}
}

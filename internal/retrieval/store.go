package retrieval

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore keeps chunk embeddings in the context_vectors table and
// answers queries with a linear cosine scan. The table is created by the
// storage migrations.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert writes all records or none.
func (s *SQLiteStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if !ValidCollection(r.SourceType) {
			return fmt.Errorf("record %s: unknown collection %q", r.ID, r.SourceType)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting vector insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, r := range records {
		created := cmp.Or(r.CreatedAt, now)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO context_vectors (id, source_id, source_type, text_chunk, embedding, created_at, tags) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.SourceID, r.SourceType, r.TextChunk, packVector(r.Embedding),
			created.UTC().Format(time.RFC3339), cmp.Or(r.Tags, "{}"))
		if err != nil {
			return fmt.Errorf("storing chunk %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Collection != "" {
		conds = append(conds, "source_type = ?")
		args = append(args, f.Collection)
	}
	if n := len(f.SourceIDs); n > 0 {
		conds = append(conds, "source_id IN ("+strings.TrimSuffix(strings.Repeat("?,", n), ",")+")")
		for _, id := range f.SourceIDs {
			args = append(args, id)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Search returns up to topK records ordered by cosine similarity to vector.
// Equal scores are ordered by id.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]ScoredRecord, error) {
	qn := magnitude(vector)
	if topK <= 0 || qn == 0 {
		return nil, nil
	}

	where, args := filter.where()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, source_type, text_chunk, embedding, created_at, tags FROM context_vectors`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning vectors: %w", err)
	}
	defer rows.Close()

	best := make([]ScoredRecord, 0, topK)
	var scratch []float32
	for rows.Next() {
		var (
			r       Record
			blob    []byte
			created string
		)
		if err := rows.Scan(&r.ID, &r.SourceID, &r.SourceType, &r.TextChunk, &blob, &created, &r.Tags); err != nil {
			return nil, fmt.Errorf("reading vector row: %w", err)
		}
		if scratch, err = unpackVector(scratch, blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", r.ID, err)
		}
		score := similarity(vector, qn, scratch)
		if len(best) == topK && !ranksAbove(score, r.ID, best[topK-1]) {
			continue
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("chunk %s created_at: %w", r.ID, err)
		}
		best = keepTop(best, ScoredRecord{Record: r, Score: score}, topK)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning vectors: %w", err)
	}
	if len(best) == 0 {
		return nil, nil
	}
	return best, nil
}

func ranksAbove(score float32, id string, than ScoredRecord) bool {
	if score != than.Score {
		return score > than.Score
	}
	return id < than.ID
}

// keepTop inserts rec into the descending slice best, holding at most k.
func keepTop(best []ScoredRecord, rec ScoredRecord, k int) []ScoredRecord {
	i, _ := slices.BinarySearchFunc(best, rec, func(e, target ScoredRecord) int {
		if ranksAbove(e.Score, e.ID, target) {
			return -1
		}
		return 1
	})
	best = slices.Insert(best, i, rec)
	if len(best) > k {
		best = best[:k]
	}
	return best
}

func (s *SQLiteStore) DeleteBySource(ctx context.Context, sourceID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM context_vectors WHERE source_id = ?`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks of %s: %w", sourceID, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Count(ctx context.Context, collection string) (n int, err error) {
	where, args := Filter{Collection: collection}.where()
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM context_vectors`+where, args...).Scan(&n)
	return n, err
}

// packVector stores v as consecutive little-endian float32s.
func packVector(v []float32) []byte {
	out := make([]byte, 0, 4*len(v))
	for _, f := range v {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}

// unpackVector decodes blob into dst, reusing its backing array.
func unpackVector(dst []float32, blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob of %d bytes is truncated", len(blob))
	}
	dst = slices.Grow(dst[:0], len(blob)/4)
	for b := blob; len(b) > 0; b = b[4:] {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return dst, nil
}

func magnitude(v []float32) float32 {
	var sq float64
	for _, f := range v {
		sq += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sq))
}

// similarity is the cosine of q (with precomputed magnitude qn) and v.
// Mismatched dimensions, left behind by an embedding model change, score 0.
func similarity(q []float32, qn float32, v []float32) float32 {
	if len(q) != len(v) {
		return 0
	}
	var dot, vv float64
	for i, x := range q {
		dot += float64(x) * float64(v[i])
		vv += float64(v[i]) * float64(v[i])
	}
	if vv == 0 {
		return 0
	}
	return float32(dot / (float64(qn) * math.Sqrt(vv)))
}

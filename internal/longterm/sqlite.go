package longterm

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mkern/psyche/internal/store"
)

// SQLiteStore implements Store over the psyche database, using an
// Embedder for similarity ranking.
type SQLiteStore struct {
	db       *store.DB
	embedder Embedder
}

// NewSQLiteStore creates a long-term store over db.
func NewSQLiteStore(db *store.DB, embedder Embedder) *SQLiteStore {
	return &SQLiteStore{db: db, embedder: embedder}
}

// Contents returns all stored entry texts, used to seed the TF-IDF
// fallback vocabulary.
func Contents(db *store.DB) ([]string, error) {
	rows, err := db.Query(`SELECT content FROM long_term_entries`)
	if err != nil {
		return nil, fmt.Errorf("long-term contents: %w", err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		docs = append(docs, c)
	}
	return docs, rows.Err()
}

// Put stores the entry and its embedding. Any failure surfaces as
// ErrWriteFailed so the consolidation worker can leave the short-term
// copy in place for the next sweep.
func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	vec, err := s.embedder.Embed(ctx, e.Content)
	if err != nil {
		return fmt.Errorf("%w: embed %s: %v", ErrWriteFailed, e.ID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrWriteFailed, err)
	}

	_, err = tx.Exec(`
		INSERT INTO long_term_entries
			(id, content, category, importance, reinforcement_count, created_at, promoted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			reinforcement_count = excluded.reinforcement_count,
			promoted_at = excluded.promoted_at
	`, e.ID, e.Content, string(e.Category), string(e.Importance),
		e.ReinforcementCount, e.CreatedAt.UnixMilli(), e.PromotedAt.UnixMilli())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: insert %s: %v", ErrWriteFailed, e.ID, err)
	}

	blob := encodeEmbedding(vec)
	now := time.Now().UnixMilli()
	_, err = tx.Exec(`
		INSERT INTO lt_vectors (entry_id, embedding, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			embedding = excluded.embedding,
			model = excluded.model,
			dimensions = excluded.dimensions,
			created_at = excluded.created_at
	`, e.ID, blob, s.embedder.Model(), len(vec), now)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: save vector %s: %v", ErrWriteFailed, e.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", ErrWriteFailed, e.ID, err)
	}
	return nil
}

// Query embeds text and returns up to k entries ranked by cosine
// similarity, highest first. Vectors embedded under a different model
// are skipped rather than mis-scored.
func (s *SQLiteStore) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}

	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT e.id, e.content, e.category, e.importance, e.reinforcement_count,
		       e.created_at, e.promoted_at, v.embedding, v.model
		FROM long_term_entries e
		JOIN lt_vectors v ON v.entry_id = e.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query long-term: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var e Entry
		var cat, imp, model string
		var createdAt, promotedAt int64
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Content, &cat, &imp, &e.ReinforcementCount,
			&createdAt, &promotedAt, &blob, &model); err != nil {
			return nil, fmt.Errorf("scan long-term entry: %w", err)
		}
		if model != s.embedder.Model() {
			continue
		}
		e.Category = store.Category(cat)
		e.Importance = store.Importance(imp)
		e.CreatedAt = time.UnixMilli(createdAt)
		e.PromotedAt = time.UnixMilli(promotedAt)

		score := CosineSimilarity(queryVec, decodeEmbedding(blob))
		if score > 0 {
			results = append(results, Result{Entry: e, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query long-term: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of consolidated entries.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM long_term_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count long-term: %w", err)
	}
	return n, nil
}

// Get returns one consolidated entry by id, or nil if absent.
func (s *SQLiteStore) Get(id string) (*Entry, error) {
	var e Entry
	var cat, imp string
	var createdAt, promotedAt int64
	err := s.db.QueryRow(`
		SELECT id, content, category, importance, reinforcement_count, created_at, promoted_at
		FROM long_term_entries WHERE id = ?
	`, id).Scan(&e.ID, &e.Content, &cat, &imp, &e.ReinforcementCount, &createdAt, &promotedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get long-term %s: %w", id, err)
	}
	e.Category = store.Category(cat)
	e.Importance = store.Importance(imp)
	e.CreatedAt = time.UnixMilli(createdAt)
	e.PromotedAt = time.UnixMilli(promotedAt)
	return &e, nil
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mkern/psyche/internal/decay"
)

// Category labels where a short-term entry came from.
type Category string

const (
	CategoryUser    Category = "user"
	CategorySystem  Category = "system"
	CategoryContext Category = "context"
	CategoryChat    Category = "chat"
	CategoryDream   Category = "dream"
)

// ValidCategories are the allowed entry categories.
var ValidCategories = map[Category]bool{
	CategoryUser:    true,
	CategorySystem:  true,
	CategoryContext: true,
	CategoryChat:    true,
	CategoryDream:   true,
}

// Importance grades how much an entry matters for retention.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

// ValidImportances are the allowed importance grades.
var ValidImportances = map[Importance]bool{
	ImportanceLow:    true,
	ImportanceNormal: true,
	ImportanceHigh:   true,
}

// Entry is a short-term memory record. Strength is always recomputed from
// (now - LastReinforcedAt, ReinforcementCount) via the decay model; the
// stored column is only a cache of the last sweep's result.
type Entry struct {
	ID                 string     `json:"id"`
	Content            string     `json:"content"`
	Category           Category   `json:"category"`
	Importance         Importance `json:"importance"`
	CreatedAt          time.Time  `json:"created_at"`
	LastReinforcedAt   time.Time  `json:"last_reinforced_at"`
	ReinforcementCount int        `json:"reinforcement_count"`
	Strength           float64    `json:"strength"`
}

// SweepPolicy tunes promotion and eviction decisions.
type SweepPolicy struct {
	// EvictionFloor is an exclusive lower bound: entries strictly below
	// it are marked for eviction.
	EvictionFloor float64
	// PromotionCeiling is an inclusive upper bound: surviving entries at
	// or above it are marked for promotion.
	PromotionCeiling float64
	// PromotionRepeats promotes any surviving entry reinforced at least
	// this many times, regardless of strength.
	PromotionRepeats int
	// MinPromotionAge keeps brand-new entries (strength near 1.0) out of
	// the promotion list until they have lived a while.
	MinPromotionAge time.Duration
}

// DefaultSweepPolicy returns the standard thresholds.
func DefaultSweepPolicy() SweepPolicy {
	return SweepPolicy{
		EvictionFloor:    0.05,
		PromotionCeiling: 0.8,
		PromotionRepeats: 3,
		MinPromotionAge:  time.Hour,
	}
}

// SweepDecision is the outcome of one sweep pass: entries to promote into
// the long-term tier and entries to evict. An entry never appears in both.
type SweepDecision struct {
	Promote []Entry
	Evict   []Entry
	Scanned int
}

// ShortTerm is the decaying working-memory tier. Writes from parallel
// pipeline stages and the consolidation worker are serialized by mu;
// SQLite's WAL mode lets reads proceed concurrently.
type ShortTerm struct {
	db    *DB
	decay decay.Model

	mu      sync.Mutex
	entropy *rand.Rand
	now     func() time.Time // injectable for decay simulation in tests
}

// NewShortTerm creates a short-term store over db with the given decay model.
func NewShortTerm(db *DB, model decay.Model) *ShortTerm {
	return &ShortTerm{
		db:      db,
		decay:   model,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// Add creates an entry with strength 1.0 and returns its id.
func (s *ShortTerm) Add(content string, category Category, importance Importance) (string, error) {
	if content == "" {
		return "", fmt.Errorf("add entry: empty content")
	}
	if !ValidCategories[category] {
		return "", fmt.Errorf("add entry: invalid category %q", category)
	}
	if !ValidImportances[importance] {
		return "", fmt.Errorf("add entry: invalid importance %q", importance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := ulid.MustNew(ulid.Timestamp(now), s.entropy).String()

	_, err := s.db.Exec(`
		INSERT INTO short_term_entries
			(id, content, category, importance, created_at, last_reinforced_at, reinforcement_count, strength)
		VALUES (?, ?, ?, ?, ?, ?, 0, 1.0)
	`, id, content, string(category), string(importance), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("add entry: %w: %v", ErrStorageUnavailable, err)
	}
	return id, nil
}

// Reinforce resets the entry's reinforcement clock and increments its
// count, flattening its decay curve. Returns ErrNotFound if the id is
// absent (already promoted or evicted).
func (s *ShortTerm) Reinforce(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	res, err := s.db.Exec(`
		UPDATE short_term_entries
		SET last_reinforced_at = ?, reinforcement_count = reinforcement_count + 1, strength = 1.0
		WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("reinforce %s: %w: %v", id, ErrStorageUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reinforce %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("reinforce %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindByContent returns the id of an entry with exactly this content in
// the given category, or ErrNotFound. Used to turn a repeated mention
// into a reinforcement instead of a duplicate entry.
func (s *ShortTerm) FindByContent(content string, category Category) (string, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT id FROM short_term_entries WHERE content = ? AND category = ? LIMIT 1
	`, content, string(category)).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("find by content: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find by content: %w", err)
	}
	return id, nil
}

// Get returns a single entry with its strength recomputed, or ErrNotFound.
func (s *ShortTerm) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT id, content, category, importance, created_at, last_reinforced_at, reinforcement_count
		FROM short_term_entries WHERE id = ?
	`, id)

	e, err := s.scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return e, nil
}

// ListActive returns entries whose recomputed strength is strictly above
// minStrength (pass 0 for all live entries), optionally filtered by
// category. Ordered by strength descending, ties broken by recency.
// Read-only: stored strength is not refreshed here.
func (s *ShortTerm) ListActive(category Category, minStrength float64) ([]Entry, error) {
	query := `
		SELECT id, content, category, importance, created_at, last_reinforced_at, reinforcement_count
		FROM short_term_entries
	`
	var args []any
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, string(category))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := s.scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list active: %w", err)
		}
		if e.Strength > minStrength {
			entries = append(entries, *e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Strength != entries[j].Strength {
			return entries[i].Strength > entries[j].Strength
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Sweep recomputes strength for every entry and decides promotions and
// evictions per the policy. It refreshes the cached strength column but
// never touches long-term storage; the consolidation worker consumes the
// decision list and owns the actual transfer.
func (s *ShortTerm) Sweep(policy SweepPolicy) (*SweepDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, content, category, importance, created_at, last_reinforced_at, reinforcement_count
		FROM short_term_entries
	`)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	var entries []Entry
	for rows.Next() {
		e, err := s.scanEntry(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sweep: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sweep: %w", err)
	}
	rows.Close()

	now := s.now()
	decision := &SweepDecision{Scanned: len(entries)}
	for _, e := range entries {
		if _, err := s.db.Exec(
			`UPDATE short_term_entries SET strength = ? WHERE id = ?`, e.Strength, e.ID,
		); err != nil {
			return nil, fmt.Errorf("sweep: refresh strength %s: %w", e.ID, err)
		}

		switch {
		case e.Strength < policy.EvictionFloor:
			decision.Evict = append(decision.Evict, e)
		case now.Sub(e.CreatedAt) < policy.MinPromotionAge:
			// Too young to consolidate, stays in the short-term tier.
		case e.Strength >= policy.PromotionCeiling || e.ReinforcementCount >= policy.PromotionRepeats:
			decision.Promote = append(decision.Promote, e)
		}
	}
	return decision, nil
}

// Delete removes an entry from the short-term tier. Used by the
// consolidation worker after promotion or for eviction.
func (s *ShortTerm) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM short_term_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Count returns the number of entries currently in the short-term tier.
func (s *ShortTerm) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM short_term_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// scanEntry scans one row and recomputes strength from the decay model.
func (s *ShortTerm) scanEntry(scan func(...any) error) (*Entry, error) {
	var e Entry
	var cat, imp string
	var createdAt, reinforcedAt int64

	if err := scan(&e.ID, &e.Content, &cat, &imp, &createdAt, &reinforcedAt, &e.ReinforcementCount); err != nil {
		return nil, err
	}
	e.Category = Category(cat)
	e.Importance = Importance(imp)
	e.CreatedAt = time.UnixMilli(createdAt)
	e.LastReinforcedAt = time.UnixMilli(reinforcedAt)
	e.Strength = s.decay.Strength(s.now().Sub(e.LastReinforcedAt), e.ReinforcementCount)
	return &e, nil
}

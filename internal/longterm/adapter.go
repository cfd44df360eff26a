// Package longterm is the durable, similarity-searchable memory tier.
//
// The consolidation worker promotes short-term entries into this tier;
// the recall stage queries it by content similarity. The underlying
// similarity engine is treated as opaque and possibly slow: every
// operation takes a context, and writes surface a typed failure instead
// of silently dropping data.
package longterm

import (
	"context"
	"errors"
	"time"

	"github.com/mkern/psyche/internal/store"
)

// ErrWriteFailed is returned when the similarity engine rejects a put.
// Callers re-queue the entry for the next sweep rather than losing it.
var ErrWriteFailed = errors.New("long-term write failed")

// Entry is a consolidated memory record.
type Entry struct {
	ID                 string           `json:"id"`
	Content            string           `json:"content"`
	Category           store.Category   `json:"category"`
	Importance         store.Importance `json:"importance"`
	ReinforcementCount int              `json:"reinforcement_count"`
	CreatedAt          time.Time        `json:"created_at"`
	PromotedAt         time.Time        `json:"promoted_at"`
}

// Result pairs an entry with its relevance to a query.
type Result struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"`
}

// Store is the long-term tier contract.
type Store interface {
	// Put stores an entry, failing with ErrWriteFailed on any storage or
	// embedding problem.
	Put(ctx context.Context, e Entry) error
	// Query returns up to k entries ranked by similarity to text,
	// highest score first.
	Query(ctx context.Context, text string, k int) ([]Result, error)
}

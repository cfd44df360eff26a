// Package emotion maintains the agent's bounded affect vector.
//
// Six fixed dimensions, each in [0, 1]. Pipeline stages never write the
// state directly: they propose deltas with a reason, the orchestrator
// queues them for one request, and a single serialized apply folds them
// into the snapshot with clamping.
package emotion

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mkern/psyche/internal/store"
)

// Dimension names one axis of the affect vector.
type Dimension string

const (
	Happiness   Dimension = "happiness"
	Trust       Dimension = "trust"
	Energy      Dimension = "energy"
	Curiosity   Dimension = "curiosity"
	Frustration Dimension = "frustration"
	Motivation  Dimension = "motivation"
)

// Dimensions lists all axes in canonical order.
var Dimensions = []Dimension{Happiness, Trust, Energy, Curiosity, Frustration, Motivation}

// Valid reports whether d names a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case Happiness, Trust, Energy, Curiosity, Frustration, Motivation:
		return true
	}
	return false
}

// Delta is a proposed change to one dimension. Reason is retained for
// observability only and never drives control flow.
type Delta struct {
	Dimension Dimension `json:"dimension"`
	Delta     float64   `json:"delta"`
	Reason    string    `json:"reason,omitempty"`
}

// Snapshot is an immutable copy of the affect vector at one point in time.
type Snapshot struct {
	Happiness   float64   `json:"happiness"`
	Trust       float64   `json:"trust"`
	Energy      float64   `json:"energy"`
	Curiosity   float64   `json:"curiosity"`
	Frustration float64   `json:"frustration"`
	Motivation  float64   `json:"motivation"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultSnapshot is the affect vector of a freshly started agent.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Happiness:   0.5,
		Trust:       0.5,
		Energy:      1.0,
		Curiosity:   0.5,
		Frustration: 0.0,
		Motivation:  0.8,
	}
}

// Value returns the scalar for one dimension.
func (s Snapshot) Value(d Dimension) float64 {
	switch d {
	case Happiness:
		return s.Happiness
	case Trust:
		return s.Trust
	case Energy:
		return s.Energy
	case Curiosity:
		return s.Curiosity
	case Frustration:
		return s.Frustration
	case Motivation:
		return s.Motivation
	}
	return 0
}

func (s *Snapshot) set(d Dimension, v float64) {
	switch d {
	case Happiness:
		s.Happiness = v
	case Trust:
		s.Trust = v
	case Energy:
		s.Energy = v
	case Curiosity:
		s.Curiosity = v
	case Frustration:
		s.Frustration = v
	case Motivation:
		s.Motivation = v
	}
}

// Mood renders the snapshot as a short natural-language description for
// prompt context.
func (s Snapshot) Mood() string {
	var mood string
	switch {
	case s.Happiness >= 0.7:
		mood = "cheerful and enthusiastic"
	case s.Happiness >= 0.5:
		mood = "balanced and friendly"
	case s.Happiness >= 0.3:
		mood = "somewhat pensive"
	default:
		mood = "downcast"
	}

	var energy string
	switch {
	case s.Energy >= 0.7:
		energy = "full of energy"
	case s.Energy >= 0.5:
		energy = "awake"
	case s.Energy >= 0.3:
		energy = "a little tired"
	default:
		energy = "exhausted"
	}

	return fmt.Sprintf("feeling %s, %s", mood, energy)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// State owns the authoritative affect vector. All mutation funnels
// through Apply, which is serialized: at most one request is in its
// apply step at any time.
type State struct {
	mu   sync.Mutex
	snap Snapshot
	db   *store.DB // nil disables persistence
}

// NewState builds a State seeded from the persisted snapshot in db, or
// from defaults if none exists. A nil db yields a purely in-memory state.
func NewState(db *store.DB) (*State, error) {
	s := &State{snap: DefaultSnapshot(), db: db}
	if db == nil {
		return s, nil
	}

	row, err := db.LoadEmotionState()
	if err != nil {
		return nil, fmt.Errorf("seed emotion state: %w", err)
	}
	if row != nil {
		s.snap = Snapshot{
			Happiness:   row.Happiness,
			Trust:       row.Trust,
			Energy:      row.Energy,
			Curiosity:   row.Curiosity,
			Frustration: row.Frustration,
			Motivation:  row.Motivation,
			UpdatedAt:   row.UpdatedAt,
		}
	}
	return s, nil
}

// Snapshot returns a copy of the current vector.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Apply folds queued deltas into the vector and returns the new snapshot.
// Deltas to the same dimension are summed before clamping, so the result
// does not depend on their order. Unknown dimensions are logged and
// skipped.
func (s *State) Apply(deltas []Delta) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[Dimension]float64)
	for _, d := range deltas {
		if !d.Dimension.Valid() {
			log.Printf("emotion: skipping delta for unknown dimension %q (%s)", d.Dimension, d.Reason)
			continue
		}
		sums[d.Dimension] += d.Delta
	}

	next := s.snap
	for dim, sum := range sums {
		next.set(dim, clamp01(next.Value(dim)+sum))
	}
	next.UpdatedAt = time.Now()
	s.snap = next

	if s.db != nil {
		err := s.db.SaveEmotionState(store.EmotionRow{
			Happiness:   next.Happiness,
			Trust:       next.Trust,
			Energy:      next.Energy,
			Curiosity:   next.Curiosity,
			Frustration: next.Frustration,
			Motivation:  next.Motivation,
			UpdatedAt:   next.UpdatedAt,
		})
		if err != nil {
			// The in-memory vector stays authoritative; persistence
			// catches up on the next apply.
			log.Printf("emotion: persist snapshot: %v", err)
		}
	}

	return next
}

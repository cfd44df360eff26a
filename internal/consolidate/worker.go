// Package consolidate runs the sleep phase: sweeping the short-term
// store, promoting strong or well-reinforced entries into long-term
// memory, and evicting what has decayed away.
package consolidate

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkern/psyche/internal/longterm"
	"github.com/mkern/psyche/internal/store"
)

// Worker states. Transitions are IDLE -> SWEEPING -> APPLYING -> IDLE;
// a trigger arriving outside IDLE is ignored, never queued.
const (
	stateIdle int32 = iota
	stateSweeping
	stateApplying
)

// interactionCounter is the persisted name of the since-last-sleep counter.
const interactionCounter = "interactions_since_consolidation"

// Worker owns the consolidation lifecycle: a wall-clock ticker, an
// interaction-count trigger, and manual triggers all funnel into the
// same idempotent cycle.
type Worker struct {
	db     *store.DB
	short  *store.ShortTerm
	long   longterm.Store
	policy store.SweepPolicy

	interval       time.Duration
	interactionMax int64

	state  atomic.Int32
	notify chan struct{}

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Config wires a Worker.
type Config struct {
	DB     *store.DB
	Short  *store.ShortTerm
	Long   longterm.Store
	Policy store.SweepPolicy

	// Interval is the wall-clock trigger period; zero means 24h.
	Interval time.Duration
	// InteractionMax triggers a cycle after this many interactions;
	// zero means 100.
	InteractionMax int64
}

// New builds a Worker. Call Start to arm the periodic triggers; manual
// Consolidate calls work either way.
func New(cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.InteractionMax <= 0 {
		cfg.InteractionMax = 100
	}
	return &Worker{
		db:             cfg.DB,
		short:          cfg.Short,
		long:           cfg.Long,
		policy:         cfg.Policy,
		interval:       cfg.Interval,
		interactionMax: cfg.InteractionMax,
		notify:         make(chan struct{}, 1),
	}
}

// Start launches the trigger loop.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.stopCh = make(chan struct{})

	w.wg.Add(1)
	go w.loop()
	log.Printf("consolidate: worker started (interval %s, interaction max %d)",
		w.interval, w.interactionMax)
}

// Stop halts the trigger loop. A cycle already in flight finishes.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Worker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.Consolidate(context.Background()); err != nil {
				log.Printf("consolidate: interval cycle: %v", err)
			}
		case <-w.notify:
			if _, err := w.Consolidate(context.Background()); err != nil {
				log.Printf("consolidate: interaction cycle: %v", err)
			}
		}
	}
}

// NoteInteraction bumps the persisted interaction counter and nudges
// the trigger loop once the threshold is reached.
func (w *Worker) NoteInteraction() {
	n, err := w.db.IncrementCounter(interactionCounter)
	if err != nil {
		log.Printf("consolidate: interaction counter: %v", err)
		return
	}
	if n >= w.interactionMax {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// Busy reports whether a cycle is currently running.
func (w *Worker) Busy() bool {
	return w.state.Load() != stateIdle
}

// Consolidate runs one full cycle synchronously. If a cycle is already
// running this is a no-op returning (nil, nil): no second sweep, no
// duplicate record. Promotions are attempted before any eviction so an
// interruption between the two never loses promotable entries; a failed
// long-term write leaves the entry in the short-term store for the next
// sweep.
func (w *Worker) Consolidate(ctx context.Context) (*store.ConsolidationRecord, error) {
	if !w.state.CompareAndSwap(stateIdle, stateSweeping) {
		log.Printf("consolidate: trigger ignored, cycle already running")
		return nil, nil
	}
	defer w.state.Store(stateIdle)

	started := time.Now()
	decision, err := w.short.Sweep(w.policy)
	if err != nil {
		return nil, err
	}

	w.state.Store(stateApplying)

	promoted := 0
	for _, e := range decision.Promote {
		err := w.long.Put(ctx, longterm.Entry{
			ID:                 e.ID,
			Content:            e.Content,
			Category:           e.Category,
			Importance:         e.Importance,
			ReinforcementCount: e.ReinforcementCount,
			CreatedAt:          e.CreatedAt,
			PromotedAt:         started,
		})
		if err != nil {
			if errors.Is(err, longterm.ErrWriteFailed) {
				log.Printf("consolidate: promote %s deferred to next sweep: %v", e.ID, err)
				continue
			}
			return nil, err
		}
		if err := w.short.Delete(e.ID); err != nil {
			log.Printf("consolidate: delete promoted %s: %v", e.ID, err)
			continue
		}
		promoted++
	}

	evicted := 0
	for _, e := range decision.Evict {
		if err := w.short.Delete(e.ID); err != nil {
			log.Printf("consolidate: evict %s: %v", e.ID, err)
			continue
		}
		evicted++
	}

	rec := store.ConsolidationRecord{
		StartedAt:       started,
		EntriesScanned:  decision.Scanned,
		EntriesPromoted: promoted,
		EntriesEvicted:  evicted,
	}
	if err := w.db.AppendConsolidationRecord(rec); err != nil {
		log.Printf("consolidate: record cycle: %v", err)
	}
	if err := w.db.ResetCounter(interactionCounter); err != nil {
		log.Printf("consolidate: reset interaction counter: %v", err)
	}

	log.Printf("consolidate: cycle done, scanned %d promoted %d evicted %d",
		rec.EntriesScanned, rec.EntriesPromoted, rec.EntriesEvicted)
	return &rec, nil
}

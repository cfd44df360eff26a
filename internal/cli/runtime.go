package cli

import (
	"fmt"
	"os"

	"github.com/mkern/psyche/internal/config"
	"github.com/mkern/psyche/internal/consolidate"
	"github.com/mkern/psyche/internal/decay"
	"github.com/mkern/psyche/internal/emotion"
	"github.com/mkern/psyche/internal/llm"
	"github.com/mkern/psyche/internal/longterm"
	"github.com/mkern/psyche/internal/pipeline"
	"github.com/mkern/psyche/internal/store"
)

// runtime is the assembled agent: every command that touches the
// database builds one of these instead of wiring components itself.
type runtime struct {
	cfg      config.Config
	db       *store.DB
	short    *store.ShortTerm
	long     *longterm.SQLiteStore
	emotions *emotion.State
	worker   *consolidate.Worker
	orch     *pipeline.Orchestrator
}

// openRuntime loads config, opens the database, and wires the memory
// tiers, emotional state, and consolidation worker. When withLLM is set
// it also builds the pipeline; commands that only inspect state skip it.
func openRuntime(withLLM bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	model := decay.Model{
		BaseLifetime: cfg.Memory.BaseLifetime,
		GrowthFactor: cfg.Memory.GrowthFactor,
	}
	short := store.NewShortTerm(db, model)

	emotions, err := emotion.NewState(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load emotional state: %w", err)
	}

	long := longterm.NewSQLiteStore(db, resolveEmbedder(cfg, db))

	worker := consolidate.New(consolidate.Config{
		DB:    db,
		Short: short,
		Long:  long,
		Policy: store.SweepPolicy{
			EvictionFloor:    cfg.Memory.EvictionFloor,
			PromotionCeiling: cfg.Memory.PromotionCeiling,
			PromotionRepeats: cfg.Memory.PromotionRepeats,
			MinPromotionAge:  cfg.Memory.MinPromotionAge,
		},
		Interval:       cfg.Consolidation.Interval,
		InteractionMax: int64(cfg.Consolidation.InteractionMax),
	})

	rt := &runtime{
		cfg:      cfg,
		db:       db,
		short:    short,
		long:     long,
		emotions: emotions,
		worker:   worker,
	}

	if withLLM {
		client, err := llm.NewClient(cfg.LLM)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("llm client: %w", err)
		}
		fmt.Fprintf(os.Stderr, "  llm: %s\n", cfg.LLM.Provider)

		rt.orch = pipeline.New(pipeline.Config{
			LLM:               client,
			Short:             short,
			Long:              long,
			Emotions:          emotions,
			StageTimeout:      cfg.Pipeline.StageTimeout,
			BackgroundTimeout: cfg.Pipeline.BackgroundTimeout,
			QueueSize:         cfg.Pipeline.BackgroundQueue,
			RecallLimit:       cfg.Memory.RecallLimit,
			OnInteraction:     worker.NoteInteraction,
		})
	}

	return rt, nil
}

// resolveEmbedder prefers a running Ollama instance and falls back to
// TF-IDF vectors built from the current long-term corpus.
func resolveEmbedder(cfg config.Config, db *store.DB) longterm.Embedder {
	url := cfg.LLM.OllamaURL
	if url == "" {
		url = "http://localhost:11434"
	}
	model := cfg.LLM.EmbeddingModel
	if model == "" {
		model = "nomic-embed-text"
	}

	if longterm.ProbeOllama(url, model) {
		fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", model)
		return longterm.NewOllamaEmbedder(url, model, 768)
	}

	docs, err := longterm.Contents(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: reading corpus for tfidf embedder: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback)\n")
	return longterm.NewTFIDFEmbedder(docs, 512)
}

func (r *runtime) Close() {
	if r.orch != nil {
		r.orch.Close()
	}
	r.worker.Stop()
	r.db.Close()
}

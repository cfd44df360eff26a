package stage

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mkern/psyche/internal/llm"
	"github.com/mkern/psyche/internal/longterm"
	"github.com/mkern/psyche/internal/store"
)

// RecallStage extracts a search query from the input, retrieves matching
// memories from both tiers, and proposes new facts worth remembering.
// Retrieval failures in either tier degrade to an empty result for that
// tier only; the stage as a whole degrades only when the model call fails.
type RecallStage struct {
	LLM       llm.Client
	Short     *store.ShortTerm
	Long      longterm.Store
	MaxTokens int

	// TopK bounds long-term retrieval; zero means 5.
	TopK int

	// MinStrength filters short-term retrieval; zero means 0.2.
	MinStrength float64
}

func (s *RecallStage) Name() string { return NameRecall }

func (s *RecallStage) Run(ctx context.Context, rc *Context) (*Result, error) {
	prompt := llm.RecallPrompt(rc.Input, llm.FormatHistory(rc.History, 6))

	resp, err := llm.CompleteOnce(ctx, s.LLM, prompt, s.MaxTokens)
	if err != nil {
		log.Printf("recall: completion failed, degrading: %v", err)
		return s.fallback(), nil
	}

	var wire struct {
		Query      string  `json:"query"`
		Facts      []Fact  `json:"facts"`
		Confidence float64 `json:"confidence"`
	}
	raw, err := extractJSON(resp.Content)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &wire)
	}
	if err != nil {
		log.Printf("recall: unparseable response, degrading: %v", err)
		return s.fallback(), nil
	}

	rec := &Recall{Query: strings.TrimSpace(wire.Query)}

	var writes []WriteRequest
	for _, f := range wire.Facts {
		f.Content = strings.TrimSpace(f.Content)
		if f.Content == "" {
			continue
		}
		if !store.ValidCategories[f.Category] {
			f.Category = store.CategoryUser
		}
		if !store.ValidImportances[f.Importance] {
			f.Importance = store.ImportanceNormal
		}
		rec.Facts = append(rec.Facts, f)
		writes = append(writes, WriteRequest{
			Content:    f.Content,
			Category:   f.Category,
			Importance: f.Importance,
		})
	}

	if rec.Query != "" {
		rec.Retrieved = s.retrieve(ctx, rec.Query)
	}

	return &Result{
		Stage:      NameRecall,
		Confidence: clamp(wire.Confidence, 0, 1),
		Writes:     writes,
		Recall:     rec,
	}, nil
}

func (s *RecallStage) retrieve(ctx context.Context, query string) []Retrieved {
	var out []Retrieved

	minStrength := s.MinStrength
	if minStrength == 0 {
		minStrength = 0.2
	}
	if s.Short != nil {
		entries, err := s.Short.ListActive("", minStrength)
		if err != nil {
			// Read path falls back to empty rather than failing the request.
			log.Printf("recall: short-term read failed: %v", err)
		} else {
			for _, e := range entries {
				out = append(out, Retrieved{
					Content: e.Content,
					Source:  "short-term",
					Score:   e.Strength,
				})
			}
		}
	}

	k := s.TopK
	if k <= 0 {
		k = 5
	}
	if s.Long != nil {
		results, err := s.Long.Query(ctx, query, k)
		if err != nil {
			log.Printf("recall: long-term query failed: %v", err)
		} else {
			for _, r := range results {
				out = append(out, Retrieved{
					Content: r.Entry.Content,
					Source:  "long-term",
					Score:   r.Score,
				})
			}
		}
	}

	return out
}

func (s *RecallStage) fallback() *Result {
	return &Result{
		Stage:    NameRecall,
		Degraded: true,
		Recall:   &Recall{},
	}
}

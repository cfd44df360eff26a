package stage

import (
	"context"
	"encoding/json"
	"log"

	"github.com/mkern/psyche/internal/emotion"
	"github.com/mkern/psyche/internal/llm"
)

// maxStageDelta bounds any single emotion-delta proposal. The model is
// told the same bound in the prompt; this enforces it.
const maxStageDelta = 0.2

// AffectStage analyzes the emotional content of the input and proposes
// emotion deltas plus a memory-boost multiplier. Degrades to a neutral
// result with no deltas on any failure.
type AffectStage struct {
	LLM       llm.Client
	MaxTokens int
}

func (s *AffectStage) Name() string { return NameAffect }

func (s *AffectStage) Run(ctx context.Context, rc *Context) (*Result, error) {
	prompt := llm.AffectPrompt(rc.Input, rc.Mood)

	resp, err := llm.CompleteOnce(ctx, s.LLM, prompt, s.MaxTokens)
	if err != nil {
		log.Printf("affect: completion failed, degrading: %v", err)
		return s.fallback(), nil
	}

	var wire struct {
		Affect
		Deltas map[string]struct {
			Delta  float64 `json:"delta"`
			Reason string  `json:"reason"`
		} `json:"deltas"`
		Confidence float64 `json:"confidence"`
	}
	raw, err := extractJSON(resp.Content)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &wire)
	}
	if err != nil {
		log.Printf("affect: unparseable response, degrading: %v", err)
		return s.fallback(), nil
	}

	a := wire.Affect
	a.Intensity = clamp(a.Intensity, 0, 1)
	a.MemoryBoost = clamp(a.MemoryBoost, 1.0, 3.0)

	var deltas []emotion.Delta
	for name, d := range wire.Deltas {
		dim := emotion.Dimension(name)
		if !dim.Valid() {
			log.Printf("affect: ignoring unknown dimension %q", name)
			continue
		}
		if d.Delta == 0 {
			continue
		}
		deltas = append(deltas, emotion.Delta{
			Dimension: dim,
			Delta:     clamp(d.Delta, -maxStageDelta, maxStageDelta),
			Reason:    d.Reason,
		})
	}

	return &Result{
		Stage:      NameAffect,
		Confidence: clamp(wire.Confidence, 0, 1),
		Deltas:     deltas,
		Affect:     &a,
	}, nil
}

func (s *AffectStage) fallback() *Result {
	return &Result{
		Stage:    NameAffect,
		Degraded: true,
		Affect:   &Affect{Sentiment: "neutral", MemoryBoost: 1.0},
	}
}

package stage

import (
	"context"
	"encoding/json"
	"log"

	"github.com/mkern/psyche/internal/llm"
)

// Classifier labels the input before any other stage runs. It never
// fails the request: when the model is unreachable or returns garbage
// it falls back to a generic classification and marks the result degraded.
type Classifier struct {
	LLM       llm.Client
	MaxTokens int
}

func (s *Classifier) Name() string { return NameClassifier }

func (s *Classifier) Run(ctx context.Context, rc *Context) (*Result, error) {
	prompt := llm.ClassifyPrompt(rc.Input, llm.FormatHistory(rc.History, 6))

	resp, err := llm.CompleteOnce(ctx, s.LLM, prompt, s.MaxTokens)
	if err != nil {
		log.Printf("classifier: completion failed, using fallback: %v", err)
		return s.fallback(), nil
	}

	var wire struct {
		Classification
		Confidence float64 `json:"confidence"`
	}
	raw, err := extractJSON(resp.Content)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &wire)
	}
	if err != nil {
		log.Printf("classifier: unparseable response, using fallback: %v", err)
		return s.fallback(), nil
	}

	c := wire.Classification
	if !classificationCategories[c.Category] {
		c.Category = "conversation"
	}
	if !urgencyLevels[c.Urgency] {
		c.Urgency = "medium"
	}
	if len(c.Language) != 2 {
		c.Language = "en"
	}

	return &Result{
		Stage:          NameClassifier,
		Confidence:     clamp(wire.Confidence, 0, 1),
		Classification: &c,
	}, nil
}

func (s *Classifier) fallback() *Result {
	return &Result{
		Stage:          NameClassifier,
		Degraded:       true,
		Classification: fallbackClassification(),
	}
}

package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mkern/psyche/internal/llm"
)

// Synthesis composes the final reply from everything upstream. It is
// the stage whose output reaches the user, so on failure it produces an
// explicitly degraded generic reply rather than no reply at all.
type Synthesis struct {
	LLM       llm.Client
	MaxTokens int
}

func (s *Synthesis) Name() string { return NameSynthesis }

func (s *Synthesis) Run(ctx context.Context, rc *Context) (*Result, error) {
	classification := "conversation"
	if r := rc.Result(NameClassifier); r != nil && r.Classification != nil {
		classification = r.Classification.Category
	}

	var memories string
	if r := rc.Result(NameRecall); r != nil && r.Recall != nil {
		memories = formatMemories(r.Recall.Retrieved)
	}

	prompt := llm.SynthesisPrompt(rc.Input, llm.FormatHistory(rc.History, 6),
		classification, rc.Mood, memories)

	resp, err := llm.CompleteOnce(ctx, s.LLM, prompt, s.MaxTokens)
	if err != nil {
		log.Printf("synthesis: completion failed, using fallback reply: %v", err)
		return s.fallback(), nil
	}

	var wire struct {
		Reply
		Confidence float64 `json:"confidence"`
	}
	raw, err := extractJSON(resp.Content)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &wire)
	}
	if err != nil || strings.TrimSpace(wire.Text) == "" {
		log.Printf("synthesis: unusable response, using fallback reply: %v", err)
		return s.fallback(), nil
	}

	return &Result{
		Stage:      NameSynthesis,
		Confidence: clamp(wire.Confidence, 0, 1),
		Reply:      &wire.Reply,
	}, nil
}

func (s *Synthesis) fallback() *Result {
	return &Result{
		Stage:    NameSynthesis,
		Degraded: true,
		Reply: &Reply{
			Strategy: "conversational",
			Tone:     "calm",
			Text:     "I'm having trouble collecting my thoughts right now. Could you say that again?",
		},
	}
}

func formatMemories(retrieved []Retrieved) string {
	if len(retrieved) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range retrieved {
		fmt.Fprintf(&b, "- [%s] %s\n", r.Source, r.Content)
	}
	return b.String()
}

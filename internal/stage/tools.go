package stage

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mkern/psyche/internal/llm"
	"github.com/mkern/psyche/internal/store"
)

// ToolDecider resolves the model's free-form action suggestions into the
// enumerated command set once, at this boundary. Downstream code only
// ever sees valid Command values. Background-only.
type ToolDecider struct {
	LLM       llm.Client
	MaxTokens int
}

func (s *ToolDecider) Name() string { return NameToolDecider }

func (s *ToolDecider) Run(ctx context.Context, rc *Context) (*Result, error) {
	reply := ""
	if r := rc.Result(NameSynthesis); r != nil && r.Reply != nil {
		reply = r.Reply.Text
	}

	resp, err := llm.CompleteOnce(ctx, s.LLM, llm.ToolPrompt(rc.Input, reply), s.MaxTokens)
	if err != nil {
		log.Printf("tool_decider: completion failed, skipping: %v", err)
		return &Result{Stage: NameToolDecider, Degraded: true, Tools: &ToolDecision{}}, nil
	}

	var wire struct {
		ToolDecision
		Confidence float64 `json:"confidence"`
	}
	raw, err := extractJSON(resp.Content)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &wire)
	}
	if err != nil {
		log.Printf("tool_decider: unparseable response, skipping: %v", err)
		return &Result{Stage: NameToolDecider, Degraded: true, Tools: &ToolDecision{}}, nil
	}

	decision := &ToolDecision{}
	for _, c := range wire.Commands {
		if !c.Name.Valid() {
			log.Printf("tool_decider: dropping unknown command %q", c.Name)
			continue
		}
		if c.Name == CommandNone {
			continue
		}
		c.Content = strings.TrimSpace(c.Content)
		if c.Content == "" {
			continue
		}
		if !store.ValidCategories[c.Category] {
			c.Category = store.CategoryUser
		}
		decision.Commands = append(decision.Commands, c)
	}

	return &Result{
		Stage:      NameToolDecider,
		Confidence: clamp(wire.Confidence, 0, 1),
		Tools:      decision,
	}, nil
}

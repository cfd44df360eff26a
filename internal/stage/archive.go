package stage

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mkern/psyche/internal/llm"
	"github.com/mkern/psyche/internal/store"
)

// Archivist extracts durable notes about the user and the agent itself
// from each exchange. Background-only; failures are logged and dropped.
type Archivist struct {
	LLM       llm.Client
	MaxTokens int
}

func (s *Archivist) Name() string { return NameArchivist }

func (s *Archivist) Run(ctx context.Context, rc *Context) (*Result, error) {
	reply := ""
	if r := rc.Result(NameSynthesis); r != nil && r.Reply != nil {
		reply = r.Reply.Text
	}

	resp, err := llm.CompleteOnce(ctx, s.LLM, llm.ArchivePrompt(rc.Input, reply), s.MaxTokens)
	if err != nil {
		log.Printf("archivist: completion failed, skipping: %v", err)
		return &Result{Stage: NameArchivist, Degraded: true, Archive: &Archive{}}, nil
	}

	var wire struct {
		Archive
		Confidence float64 `json:"confidence"`
	}
	raw, err := extractJSON(resp.Content)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &wire)
	}
	if err != nil {
		log.Printf("archivist: unparseable response, skipping: %v", err)
		return &Result{Stage: NameArchivist, Degraded: true, Archive: &Archive{}}, nil
	}

	arch := &Archive{}
	var writes []WriteRequest
	for _, n := range wire.Notes {
		n.Content = strings.TrimSpace(n.Content)
		if n.Content == "" {
			continue
		}
		if !store.ValidCategories[n.Category] {
			n.Category = store.CategorySystem
		}
		arch.Notes = append(arch.Notes, n)
		writes = append(writes, WriteRequest{
			Content:    n.Content,
			Category:   n.Category,
			Importance: store.ImportanceNormal,
		})
		if len(arch.Notes) == 3 {
			break
		}
	}

	return &Result{
		Stage:      NameArchivist,
		Confidence: clamp(wire.Confidence, 0, 1),
		Writes:     writes,
		Archive:    arch,
	}, nil
}

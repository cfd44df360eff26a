// Package stage defines the specialized processing stages of the
// cognitive pipeline and the shared per-request context they operate on.
package stage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mkern/psyche/internal/emotion"
	"github.com/mkern/psyche/internal/store"
)

// Stage names, used as keys in the per-request results map.
const (
	NameClassifier  = "classifier"
	NameAffect      = "affect"
	NameRecall      = "recall"
	NameSynthesis   = "synthesis"
	NameReward      = "reward"
	NameArchivist   = "archivist"
	NameToolDecider = "tool_decider"
)

// Stage is one specialized unit of the pipeline. Run must not block on
// another stage's result; everything a stage needs from upstream stages
// is already in the Context when the orchestrator invokes it.
//
// Run never returns an error for a degraded outcome: provider failures,
// timeouts, and unparseable model output all produce a fallback Result
// with Degraded set. An error return means the stage could not produce
// even a fallback and the caller decides what that means for the request.
type Stage interface {
	Name() string
	Run(ctx context.Context, rc *Context) (*Result, error)
}

// Context carries one request through the pipeline. Fields set at
// construction are never mutated; only the results map changes as
// stages complete.
type Context struct {
	RequestID string
	Input     string
	Locale    string
	History   []string
	Mood      string
	Emotions  emotion.Snapshot

	mu      sync.RWMutex
	results map[string]*Result
}

// NewContext builds a request context around one user utterance and a
// snapshot of the emotional state taken at request start.
func NewContext(input string, history []string, snap emotion.Snapshot) *Context {
	return &Context{
		RequestID: uuid.New().String(),
		Input:     input,
		History:   history,
		Mood:      snap.Mood(),
		Emotions:  snap,
		results:   make(map[string]*Result),
	}
}

// SetResult records a completed stage's result.
func (c *Context) SetResult(r *Result) {
	if r == nil {
		return
	}
	c.mu.Lock()
	c.results[r.Stage] = r
	c.mu.Unlock()
}

// Result returns the recorded result for a stage, or nil if the stage
// has not completed (or was abandoned).
func (c *Context) Result(name string) *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.results[name]
}

// Clone returns a frozen copy of the context for background stages.
// The clone shares no mutable state with the original, so background
// work cannot race with the next request.
func (c *Context) Clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Context{
		RequestID: c.RequestID,
		Input:     c.Input,
		Locale:    c.Locale,
		History:   append([]string(nil), c.History...),
		Mood:      c.Mood,
		Emotions:  c.Emotions,
		results:   make(map[string]*Result, len(c.results)),
	}
	for k, v := range c.results {
		clone.results[k] = v
	}
	return clone
}

// WriteRequest asks the orchestrator to store a new short-term memory.
// Stages never write to the store directly.
type WriteRequest struct {
	Content    string
	Category   store.Category
	Importance store.Importance
}

// Result is the structured output of one stage. Exactly one of the
// payload pointers is non-nil, matching Stage. Writes and Deltas are
// side-effect requests the orchestrator applies on the stage's behalf.
type Result struct {
	Stage      string
	Degraded   bool
	Confidence float64
	Writes     []WriteRequest
	Deltas     []emotion.Delta

	Classification *Classification
	Affect         *Affect
	Recall         *Recall
	Reply          *Reply
	Reward         *Reward
	Archive        *Archive
	Tools          *ToolDecision
}

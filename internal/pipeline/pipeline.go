// Package pipeline orchestrates the cognitive stages for one request:
// classification first, affect and recall in parallel, synthesis after
// the join, then a detached background fan-out once the caller already
// has the response.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mkern/psyche/internal/emotion"
	"github.com/mkern/psyche/internal/llm"
	"github.com/mkern/psyche/internal/longterm"
	"github.com/mkern/psyche/internal/stage"
	"github.com/mkern/psyche/internal/store"
)

// Request states, strictly forward within one request.
const (
	StateClassifying  = "CLASSIFYING"
	StateParallel     = "PARALLEL_ANALYSIS"
	StateSynthesizing = "SYNTHESIZING"
	StateResponded    = "RESPONDED"
	StateBackground   = "BACKGROUND_PROCESSING"
	StateDone         = "DONE"
)

// historyLimit bounds the rolling conversation window.
const historyLimit = 20

// Response is what the orchestrator returns to the caller. Degraded is
// set when the reply came from a fallback path rather than synthesis.
type Response struct {
	RequestID string `json:"request_id"`
	Reply     string `json:"reply"`
	Strategy  string `json:"strategy"`
	Tone      string `json:"tone"`
	Mood      string `json:"mood"`
	Degraded  bool   `json:"degraded"`
}

// Config wires an Orchestrator.
type Config struct {
	LLM      llm.Client
	Short    *store.ShortTerm
	Long     longterm.Store
	Emotions *emotion.State

	StageTimeout      time.Duration
	BackgroundTimeout time.Duration
	QueueSize         int
	MaxTokens         int

	// RecallLimit bounds long-term retrieval per request; zero means 5.
	RecallLimit int

	// OnInteraction is called once per completed request, after the
	// background stages finish. Used to drive consolidation triggers.
	OnInteraction func()
}

// Orchestrator runs the pipeline. The stage fields are populated by New
// but exported so callers can swap individual stages.
type Orchestrator struct {
	Classifier stage.Stage
	Affect     stage.Stage
	Recall     stage.Stage
	Synthesis  stage.Stage
	Background []stage.Stage

	short    *store.ShortTerm
	long     longterm.Store
	emotions *emotion.State

	stageTimeout      time.Duration
	backgroundTimeout time.Duration
	onInteraction     func()

	supervisor *Supervisor

	mu      sync.Mutex
	history []string
}

// New builds an orchestrator with the seven standard stages and starts
// its background supervisor.
func New(cfg Config) *Orchestrator {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 30 * time.Second
	}
	if cfg.BackgroundTimeout <= 0 {
		cfg.BackgroundTimeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	o := &Orchestrator{
		Classifier: &stage.Classifier{LLM: cfg.LLM, MaxTokens: maxTokens},
		Affect:     &stage.AffectStage{LLM: cfg.LLM, MaxTokens: maxTokens},
		Recall: &stage.RecallStage{
			LLM: cfg.LLM, Short: cfg.Short, Long: cfg.Long,
			MaxTokens: maxTokens, TopK: cfg.RecallLimit,
		},
		Synthesis: &stage.Synthesis{LLM: cfg.LLM, MaxTokens: maxTokens},
		Background: []stage.Stage{
			&stage.RewardStage{LLM: cfg.LLM, MaxTokens: maxTokens},
			&stage.Archivist{LLM: cfg.LLM, MaxTokens: maxTokens},
			&stage.ToolDecider{LLM: cfg.LLM, MaxTokens: maxTokens},
		},
		short:             cfg.Short,
		long:              cfg.Long,
		emotions:          cfg.Emotions,
		stageTimeout:      cfg.StageTimeout,
		backgroundTimeout: cfg.BackgroundTimeout,
		onInteraction:     cfg.OnInteraction,
	}
	o.supervisor = NewSupervisor(cfg.QueueSize, o.runBackground)
	o.supervisor.Start()
	return o
}

// Close stops the background supervisor, draining queued work first.
func (o *Orchestrator) Close() {
	o.supervisor.Stop()
}

// History returns a copy of the rolling conversation window.
func (o *Orchestrator) History() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.history...)
}

// Handle runs one utterance through the pipeline and returns the
// response once synthesis completes. Background stages continue after
// return. The caller always gets a response; stage failures degrade,
// they never surface as errors.
func (o *Orchestrator) Handle(ctx context.Context, input string) (*Response, error) {
	rc := stage.NewContext(input, o.History(), o.emotions.Snapshot())

	// CLASSIFYING
	o.logState(rc.RequestID, StateClassifying)
	classRes := o.runStage(ctx, o.Classifier, rc)
	if classRes != nil {
		rc.SetResult(classRes)
		if classRes.Classification != nil {
			rc.Locale = classRes.Classification.Language
		}
	}

	// PARALLEL_ANALYSIS
	o.logState(rc.RequestID, StateParallel)
	completed := o.runParallel(ctx, rc, o.Affect, o.Recall)

	queue := &emotion.Queue{}
	boost := 1.0
	var writes []stage.WriteRequest
	for _, res := range completed {
		rc.SetResult(res)
		queue.ProposeAll(res.Deltas)
		writes = append(writes, res.Writes...)
		if res.Affect != nil && res.Affect.MemoryBoost > boost {
			boost = res.Affect.MemoryBoost
		}
	}
	if deltas := queue.Drain(); len(deltas) > 0 {
		o.emotions.Apply(deltas)
	}
	o.applyWrites(writes, boost)

	// SYNTHESIZING
	o.logState(rc.RequestID, StateSynthesizing)
	synthRes := o.runStage(ctx, o.Synthesis, rc)
	if synthRes == nil {
		synthRes = &stage.Result{
			Stage:    stage.NameSynthesis,
			Degraded: true,
			Reply:    &stage.Reply{Text: "I'm having trouble collecting my thoughts right now. Could you say that again?"},
		}
	}
	rc.SetResult(synthRes)

	// RESPONDED
	o.logState(rc.RequestID, StateResponded)
	resp := &Response{
		RequestID: rc.RequestID,
		Reply:     synthRes.Reply.Text,
		Strategy:  synthRes.Reply.Strategy,
		Tone:      synthRes.Reply.Tone,
		Mood:      o.emotions.Snapshot().Mood(),
		Degraded:  synthRes.Degraded || (classRes != nil && classRes.Degraded),
	}
	o.appendHistory(input, resp.Reply)

	// BACKGROUND_PROCESSING runs detached on a frozen snapshot.
	o.logState(rc.RequestID, StateBackground)
	o.supervisor.Submit(rc.Clone())

	return resp, nil
}

// runStage invokes one stage under the per-stage deadline. A stage
// error is logged and yields nil; degradation is the stage's own job.
func (o *Orchestrator) runStage(ctx context.Context, s stage.Stage, rc *stage.Context) *stage.Result {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	res, err := s.Run(sctx, rc)
	if err != nil {
		log.Printf("pipeline %s: stage %s failed: %v", rc.RequestID, s.Name(), err)
		return nil
	}
	return res
}

// runParallel fans out the given stages and joins on all of them
// completing or the join deadline passing, whichever is first. Results
// are returned in completion order; a late result is discarded.
func (o *Orchestrator) runParallel(ctx context.Context, rc *stage.Context, stages ...stage.Stage) []*stage.Result {
	ch := make(chan *stage.Result, len(stages))
	for _, s := range stages {
		go func(s stage.Stage) {
			ch <- o.runStage(ctx, s, rc)
		}(s)
	}

	// Stages already degrade on their own deadline; the grace period
	// only catches a stage stuck past its context.
	join := time.NewTimer(o.stageTimeout + 100*time.Millisecond)
	defer join.Stop()

	var completed []*stage.Result
	for n := 0; n < len(stages); n++ {
		select {
		case res := <-ch:
			if res != nil {
				completed = append(completed, res)
			}
		case <-join.C:
			log.Printf("pipeline %s: parallel join timed out with %d/%d stages done",
				rc.RequestID, len(completed), len(stages))
			return completed
		}
	}
	return completed
}

// applyWrites stores stage-requested memories. A write whose content
// already exists in the category reinforces that entry instead of
// duplicating it; the affect memory boost bumps importance one level
// when the exchange registered strongly.
func (o *Orchestrator) applyWrites(writes []stage.WriteRequest, boost float64) {
	if o.short == nil {
		return
	}
	for _, w := range writes {
		if id, err := o.short.FindByContent(w.Content, w.Category); err == nil {
			if err := o.short.Reinforce(id); err != nil {
				// Swept away between lookup and reinforce; fall through to add.
				log.Printf("pipeline: reinforce %s: %v", id, err)
			} else {
				continue
			}
		}
		importance := w.Importance
		if boost >= 2.0 && importance == store.ImportanceNormal {
			importance = store.ImportanceHigh
		}
		if _, err := o.short.Add(w.Content, w.Category, importance); err != nil {
			log.Printf("pipeline: memory write failed: %v", err)
		}
	}
}

func (o *Orchestrator) appendHistory(input, reply string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, "user: "+input, "agent: "+reply)
	if len(o.history) > historyLimit {
		o.history = o.history[len(o.history)-historyLimit:]
	}
}

// runBackground executes the detached stages on a frozen context clone.
// Failures are logged and contained; nothing here reaches the user.
func (o *Orchestrator) runBackground(rc *stage.Context) {
	for _, s := range o.Background {
		func() {
			sctx, cancel := context.WithTimeout(context.Background(), o.backgroundTimeout)
			defer cancel()

			res, err := s.Run(sctx, rc)
			if err != nil || res == nil {
				log.Printf("background %s: stage %s failed: %v", rc.RequestID, s.Name(), err)
				return
			}
			rc.SetResult(res)

			if len(res.Deltas) > 0 {
				o.emotions.Apply(res.Deltas)
			}
			o.applyWrites(res.Writes, 1.0)
			if res.Tools != nil {
				o.executeCommands(res.Tools.Commands)
			}
		}()
	}

	o.logState(rc.RequestID, StateDone)
	if o.onInteraction != nil {
		o.onInteraction()
	}
}

// executeCommands applies resolved ToolDecider commands. Only memory
// and profile writes exist; anything else was dropped at parse time.
func (o *Orchestrator) executeCommands(cmds []stage.Command) {
	var writes []stage.WriteRequest
	for _, c := range cmds {
		switch c.Name {
		case stage.CommandRememberFact:
			writes = append(writes, stage.WriteRequest{
				Content: c.Content, Category: c.Category, Importance: store.ImportanceHigh,
			})
		case stage.CommandUpdateProfile:
			writes = append(writes, stage.WriteRequest{
				Content: c.Content, Category: store.CategoryUser, Importance: store.ImportanceHigh,
			})
		}
	}
	o.applyWrites(writes, 1.0)
}

func (o *Orchestrator) logState(requestID, state string) {
	log.Printf("pipeline %s: %s", requestID, state)
}

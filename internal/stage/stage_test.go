package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mkern/psyche/internal/decay"
	"github.com/mkern/psyche/internal/emotion"
	"github.com/mkern/psyche/internal/llm"
	"github.com/mkern/psyche/internal/store"
)

func testContext(input string) *Context {
	return NewContext(input, nil, emotion.DefaultSnapshot())
}

func TestClassifierParsesResponse(t *testing.T) {
	mock := llm.NewMock(`Here you go:
` + "```json" + `
{"category": "emotional", "language": "de", "urgency": "high",
 "emotional_content": true, "needs_recall": true, "needs_tools": false,
 "confidence": 0.9}
` + "```")
	s := &Classifier{LLM: mock, MaxTokens: 256}

	res, err := s.Run(context.Background(), testContext("Ich bin so froh!"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Degraded {
		t.Error("result marked degraded")
	}
	c := res.Classification
	if c == nil || c.Category != "emotional" || c.Language != "de" || c.Urgency != "high" {
		t.Errorf("classification = %+v", c)
	}
	if !c.EmotionalContent || !c.NeedsRecall {
		t.Errorf("flags not carried: %+v", c)
	}
	if res.Confidence != 0.9 {
		t.Errorf("confidence = %f", res.Confidence)
	}
}

func TestClassifierDefaultsInvalidFields(t *testing.T) {
	mock := llm.NewMock(`{"category": "philosophy", "language": "english", "urgency": "extreme"}`)
	s := &Classifier{LLM: mock}

	res, _ := s.Run(context.Background(), testContext("hi"))
	c := res.Classification
	if c.Category != "conversation" {
		t.Errorf("category = %q, want conversation", c.Category)
	}
	if c.Language != "en" {
		t.Errorf("language = %q, want en", c.Language)
	}
	if c.Urgency != "medium" {
		t.Errorf("urgency = %q, want medium", c.Urgency)
	}
}

func TestClassifierFallsBackOnProviderFailure(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("boom")}
	s := &Classifier{LLM: mock}

	res, err := s.Run(context.Background(), testContext("hi"))
	if err != nil {
		t.Fatalf("Run should not fail: %v", err)
	}
	if !res.Degraded {
		t.Error("fallback not marked degraded")
	}
	if res.Classification == nil || res.Classification.Category != "conversation" {
		t.Errorf("fallback classification = %+v", res.Classification)
	}
}

func TestAffectClampsDeltas(t *testing.T) {
	mock := llm.NewMock(`{
		"primary_emotion": "joy", "sentiment": "positive",
		"intensity": 0.8, "memory_boost": 5.0,
		"deltas": {
			"happiness": {"delta": 0.9, "reason": "praise"},
			"trust": {"delta": -0.5, "reason": "none"},
			"energy": {"delta": 0.0, "reason": ""},
			"serenity": {"delta": 0.1, "reason": "made up"}
		},
		"confidence": 0.8}`)
	s := &AffectStage{LLM: mock}

	res, err := s.Run(context.Background(), testContext("you are wonderful"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Affect.MemoryBoost != 3.0 {
		t.Errorf("memory_boost = %f, want clamped to 3.0", res.Affect.MemoryBoost)
	}
	if len(res.Deltas) != 2 {
		t.Fatalf("got %d deltas, want 2 (zero and unknown dropped): %+v", len(res.Deltas), res.Deltas)
	}
	for _, d := range res.Deltas {
		if d.Delta > maxStageDelta || d.Delta < -maxStageDelta {
			t.Errorf("delta %s=%f outside [-%f, %f]", d.Dimension, d.Delta, maxStageDelta, maxStageDelta)
		}
	}
}

func TestAffectDegradesToNeutral(t *testing.T) {
	mock := llm.NewMock("I refuse to answer in JSON.")
	s := &AffectStage{LLM: mock}

	res, _ := s.Run(context.Background(), testContext("hi"))
	if !res.Degraded {
		t.Error("not marked degraded")
	}
	if len(res.Deltas) != 0 {
		t.Errorf("degraded affect proposed deltas: %+v", res.Deltas)
	}
	if res.Affect.MemoryBoost != 1.0 {
		t.Errorf("degraded memory_boost = %f, want 1.0", res.Affect.MemoryBoost)
	}
}

func TestRecallProposesWritesAndRetrieves(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()
	short := store.NewShortTerm(db, decay.Default())
	if _, err := short.Add("User plays chess on Sundays", store.CategoryUser, store.ImportanceNormal); err != nil {
		t.Fatalf("Add: %v", err)
	}

	mock := llm.NewMock(`{
		"query": "chess hobbies",
		"facts": [
			{"content": "User plays chess", "category": "user", "importance": "high"},
			{"content": "", "category": "user", "importance": "low"},
			{"content": "Unknown category fact", "category": "weird", "importance": "silly"}
		],
		"confidence": 0.7}`)
	s := &RecallStage{LLM: mock, Short: short}

	res, err := s.Run(context.Background(), testContext("do you remember my hobbies?"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Writes) != 2 {
		t.Fatalf("got %d writes, want 2 (empty fact dropped): %+v", len(res.Writes), res.Writes)
	}
	if res.Writes[1].Category != store.CategoryUser || res.Writes[1].Importance != store.ImportanceNormal {
		t.Errorf("invalid enums not defaulted: %+v", res.Writes[1])
	}
	found := false
	for _, r := range res.Recall.Retrieved {
		if r.Source == "short-term" && strings.Contains(r.Content, "chess") {
			found = true
		}
	}
	if !found {
		t.Errorf("short-term entry not retrieved: %+v", res.Recall.Retrieved)
	}
}

func TestRecallDegradesEmpty(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("down")}
	s := &RecallStage{LLM: mock}

	res, err := s.Run(context.Background(), testContext("hi"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Degraded || len(res.Writes) != 0 || len(res.Recall.Retrieved) != 0 {
		t.Errorf("degraded recall not empty: %+v", res)
	}
}

func TestSynthesisUsesUpstreamResults(t *testing.T) {
	mock := llm.NewMock(`{"strategy": "informative", "tone": "friendly",
		"reply": "You told me you play chess on Sundays.", "confidence": 0.85}`)
	s := &Synthesis{LLM: mock}

	rc := testContext("what do I do on weekends?")
	rc.SetResult(&Result{Stage: NameClassifier, Classification: &Classification{Category: "memory_query"}})
	rc.SetResult(&Result{Stage: NameRecall, Recall: &Recall{
		Retrieved: []Retrieved{{Content: "User plays chess on Sundays", Source: "long-term", Score: 0.9}},
	}})

	res, err := s.Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reply.Text != "You told me you play chess on Sundays." {
		t.Errorf("reply = %q", res.Reply.Text)
	}
	prompt := mock.Calls[0]
	if !strings.Contains(prompt, "memory_query") {
		t.Error("classification not in prompt")
	}
	if !strings.Contains(prompt, "chess on Sundays") {
		t.Error("retrieved memory not in prompt")
	}
}

func TestSynthesisFallbackReply(t *testing.T) {
	mock := llm.NewMock(`{"strategy": "conversational", "tone": "calm", "reply": ""}`)
	s := &Synthesis{LLM: mock}

	res, err := s.Run(context.Background(), testContext("hi"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Degraded {
		t.Error("empty reply not marked degraded")
	}
	if res.Reply == nil || res.Reply.Text == "" {
		t.Error("fallback produced no reply text")
	}
}

func TestRewardDeltas(t *testing.T) {
	tests := []struct {
		name    string
		reward  Reward
		wantDim emotion.Dimension
		wantLen int
	}{
		{"satisfying", Reward{Satisfaction: 0.9, HabitSignal: 1.0}, emotion.Motivation, 2},
		{"poor", Reward{Satisfaction: 0.1}, emotion.Motivation, 2},
		{"middling", Reward{Satisfaction: 0.5}, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deltas := rewardDeltas(tt.reward)
			if len(deltas) != tt.wantLen {
				t.Fatalf("got %d deltas, want %d", len(deltas), tt.wantLen)
			}
			if tt.wantLen > 0 && deltas[0].Dimension != tt.wantDim {
				t.Errorf("first delta dimension = %s", deltas[0].Dimension)
			}
		})
	}
}

func TestArchivistCapsNotes(t *testing.T) {
	mock := llm.NewMock(`{"notes": [
		{"content": "User prefers brief answers", "category": "user"},
		{"content": "Agent enjoys technical topics", "category": "system"},
		{"content": "Recurring theme: chess", "category": "user"},
		{"content": "A fourth note", "category": "user"},
		{"content": "Invalid category note", "category": "nonsense"}
	], "confidence": 0.6}`)
	s := &Archivist{LLM: mock}

	res, err := s.Run(context.Background(), testContext("thanks, short answers please"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Archive.Notes) != 3 {
		t.Errorf("got %d notes, want capped at 3", len(res.Archive.Notes))
	}
	if len(res.Writes) != 3 {
		t.Errorf("got %d writes, want 3", len(res.Writes))
	}
}

func TestToolDeciderDropsInvalidCommands(t *testing.T) {
	mock := llm.NewMock(`{"commands": [
		{"command": "remember_fact", "content": "User is vegetarian", "category": "user"},
		{"command": "launch_rocket", "content": "now"},
		{"command": "none"},
		{"command": "update_profile", "content": ""}
	], "confidence": 0.5}`)
	s := &ToolDecider{LLM: mock}

	res, err := s.Run(context.Background(), testContext("I don't eat meat"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Tools.Commands) != 1 {
		t.Fatalf("got %d commands, want 1: %+v", len(res.Tools.Commands), res.Tools.Commands)
	}
	cmd := res.Tools.Commands[0]
	if cmd.Name != CommandRememberFact || cmd.Content != "User is vegetarian" {
		t.Errorf("command = %+v", cmd)
	}
}

func TestContextCloneIsFrozen(t *testing.T) {
	rc := testContext("hello")
	rc.SetResult(&Result{Stage: NameClassifier, Classification: fallbackClassification()})

	clone := rc.Clone()
	rc.SetResult(&Result{Stage: NameSynthesis, Reply: &Reply{Text: "later"}})

	if clone.Result(NameSynthesis) != nil {
		t.Error("clone sees results recorded after cloning")
	}
	if clone.Result(NameClassifier) == nil {
		t.Error("clone missing results recorded before cloning")
	}
	if clone.RequestID != rc.RequestID {
		t.Error("clone has a different request id")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare", `{"a": 1}`, `{"a": 1}`, false},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"wrapped", `Sure! {"a": 1} Hope that helps.`, `{"a": 1}`, false},
		{"none", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

package stage

import "github.com/mkern/psyche/internal/store"

// Classification is the Classifier payload.
type Classification struct {
	Category         string `json:"category"`
	Language         string `json:"language"`
	Urgency          string `json:"urgency"`
	EmotionalContent bool   `json:"emotional_content"`
	NeedsRecall      bool   `json:"needs_recall"`
	NeedsTools       bool   `json:"needs_tools"`
}

var classificationCategories = map[string]bool{
	"conversation": true,
	"information":  true,
	"emotional":    true,
	"task":         true,
	"memory_query": true,
	"urgent":       true,
}

var urgencyLevels = map[string]bool{
	"high":   true,
	"medium": true,
	"low":    true,
}

// fallbackClassification is used when the model output is unusable.
// Conservative: assume plain conversation, do the recall anyway.
func fallbackClassification() *Classification {
	return &Classification{
		Category:    "conversation",
		Language:    "en",
		Urgency:     "low",
		NeedsRecall: true,
	}
}

// Affect is the Affect stage payload. Its emotion-delta proposals live
// on the Result, not here; this is the analysis summary.
type Affect struct {
	PrimaryEmotion string  `json:"primary_emotion"`
	Sentiment      string  `json:"sentiment"`
	Intensity      float64 `json:"intensity"`
	MemoryBoost    float64 `json:"memory_boost"`
}

// Fact is a durable statement the Recall stage wants remembered.
type Fact struct {
	Content    string           `json:"content"`
	Category   store.Category   `json:"category"`
	Importance store.Importance `json:"importance"`
}

// Retrieved is one memory surfaced for the current input.
type Retrieved struct {
	Content string  `json:"content"`
	Source  string  `json:"source"` // "short-term" or "long-term"
	Score   float64 `json:"score"`
}

// Recall is the Recall stage payload.
type Recall struct {
	Query     string      `json:"query"`
	Facts     []Fact      `json:"facts"`
	Retrieved []Retrieved `json:"retrieved"`
}

// Reply is the Synthesis payload, the response returned to the caller.
type Reply struct {
	Strategy string `json:"strategy"`
	Tone     string `json:"tone"`
	Text     string `json:"reply"`
}

// Reward is the background evaluation of how the exchange went.
type Reward struct {
	Satisfaction    float64 `json:"satisfaction"`
	PredictionError float64 `json:"prediction_error"`
	HabitSignal     float64 `json:"habit_signal"`
}

// Note is one persistent observation extracted by the Archivist.
type Note struct {
	Content  string         `json:"content"`
	Category store.Category `json:"category"`
}

// Archive is the Archivist payload.
type Archive struct {
	Notes []Note `json:"notes"`
}

// CommandName enumerates the follow-up actions the ToolDecider may
// request. Anything the model invents outside this set is dropped at
// the parsing boundary.
type CommandName string

const (
	CommandRememberFact  CommandName = "remember_fact"
	CommandUpdateProfile CommandName = "update_profile"
	CommandNone          CommandName = "none"
)

// Valid reports whether the command is one the runtime knows how to execute.
func (c CommandName) Valid() bool {
	switch c {
	case CommandRememberFact, CommandUpdateProfile, CommandNone:
		return true
	}
	return false
}

// Command is one resolved follow-up action.
type Command struct {
	Name     CommandName    `json:"command"`
	Content  string         `json:"content"`
	Category store.Category `json:"category"`
}

// ToolDecision is the ToolDecider payload.
type ToolDecision struct {
	Commands []Command `json:"commands"`
}

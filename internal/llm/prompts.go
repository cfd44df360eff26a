package llm

import (
	"fmt"
	"strings"
)

// FormatHistory renders recent conversation turns for prompt context.
// Turns alternate "user: ..." / "agent: ..." lines; only the last max
// turns are kept.
func FormatHistory(turns []string, max int) string {
	if len(turns) == 0 {
		return "(no prior conversation)"
	}
	if max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	return strings.Join(turns, "\n")
}

// ClassifyPrompt asks for input classification. First stage, runs alone.
func ClassifyPrompt(input, history string) string {
	return fmt.Sprintf(`You are the input classifier of a conversational agent.

USER INPUT:
%s

RECENT CONVERSATION:
%s

Classify the input. Categories:
- conversation: smalltalk, ordinary dialogue
- information: knowledge question
- emotional: personal sharing, emotional content
- task: a request that needs tools or actions
- memory_query: question about past conversations
- urgent: needs immediate attention

Return ONLY JSON:
{
  "category": "conversation|information|emotional|task|memory_query|urgent",
  "language": "two-letter code, e.g. en",
  "urgency": "high|medium|low",
  "emotional_content": true|false,
  "needs_recall": true|false,
  "needs_tools": true|false,
  "confidence": 0.0-1.0
}`, input, history)
}

// AffectPrompt asks for emotional analysis and delta proposals.
func AffectPrompt(input, mood string) string {
	return fmt.Sprintf(`You are the affect analyzer of a conversational agent.

USER INPUT:
%s

CURRENT MOOD: %s

Rules:
- Praise, gratitude, warmth raise happiness and trust
- Promises and support raise trust strongly
- Insults directed at the agent lower happiness, raise frustration
- Questions raise curiosity; encouragement raises motivation
- Every interaction costs a little energy
- Judge context, not single words: "I hate pizza" is not hostility

Return ONLY JSON. Deltas are in [-0.2, 0.2]:
{
  "primary_emotion": "joy|trust|curiosity|frustration|neutral|...",
  "sentiment": "positive|neutral|negative",
  "intensity": 0.0-1.0,
  "memory_boost": 1.0-3.0,
  "deltas": {
    "happiness":   {"delta": 0.0, "reason": ""},
    "trust":       {"delta": 0.0, "reason": ""},
    "energy":      {"delta": 0.0, "reason": ""},
    "curiosity":   {"delta": 0.0, "reason": ""},
    "frustration": {"delta": 0.0, "reason": ""},
    "motivation":  {"delta": 0.0, "reason": ""}
  },
  "confidence": 0.0-1.0
}`, input, mood)
}

// RecallPrompt asks for a memory search query and facts worth keeping.
func RecallPrompt(input, history string) string {
	return fmt.Sprintf(`You are the memory stage of a conversational agent.

USER INPUT:
%s

RECENT CONVERSATION:
%s

Two jobs:
1. Build one short search query to retrieve relevant memories.
2. List any new durable facts from this input worth remembering.

Return ONLY JSON:
{
  "query": "short search query, empty if nothing to retrieve",
  "facts": [
    {"content": "the fact", "category": "user|system|context|chat|dream", "importance": "low|normal|high"}
  ],
  "confidence": 0.0-1.0
}

If nothing is worth remembering, return "facts": [].`, input, history)
}

// SynthesisPrompt asks for the final reply given all upstream analysis.
func SynthesisPrompt(input, history, classification, mood, memories string) string {
	if memories == "" {
		memories = "(none retrieved)"
	}
	return fmt.Sprintf(`You are a conversational agent composing your reply.

USER INPUT:
%s

RECENT CONVERSATION:
%s

CLASSIFICATION: %s
YOUR MOOD: %s

RELEVANT MEMORIES:
%s

Compose the reply. Let mood color the wording and use memories naturally,
without reciting them.

Return ONLY JSON:
{
  "strategy": "conversational|informative|emotional|technical|creative",
  "tone": "friendly|formal|casual|enthusiastic|calm",
  "reply": "the full reply text",
  "confidence": 0.0-1.0
}`, input, history, classification, mood, memories)
}

// RewardPrompt asks for an interaction quality evaluation (background).
func RewardPrompt(input, reply string) string {
	return fmt.Sprintf(`You are the reward evaluator of a conversational agent.

USER INPUT:
%s

AGENT REPLY:
%s

Rate how well the reply served the user.

Return ONLY JSON:
{
  "satisfaction": 0.0-1.0,
  "prediction_error": -1.0-1.0,
  "habit_signal": 0.0-1.0,
  "confidence": 0.0-1.0
}`, input, reply)
}

// ArchivePrompt asks for personality/profile notes worth persisting (background).
func ArchivePrompt(input, reply string) string {
	return fmt.Sprintf(`You are the archivist of a conversational agent, maintaining its
long-running notes about itself and the user.

USER INPUT:
%s

AGENT REPLY:
%s

Extract at most three notes that should persist beyond this exchange:
stable user traits, the agent's own evolving preferences, or recurring
themes. Skip anything trivial or session-specific.

Return ONLY JSON:
{
  "notes": [
    {"content": "the note", "category": "user|system|dream"}
  ],
  "confidence": 0.0-1.0
}

If nothing qualifies, return "notes": [].`, input, reply)
}

// ToolPrompt asks which follow-up commands the exchange calls for (background).
func ToolPrompt(input, reply string) string {
	return fmt.Sprintf(`You decide which follow-up actions a conversational agent should take
after an exchange. Available commands:
- remember_fact: store a durable fact (content + category)
- update_profile: record something about the user (content)
- none: no action

USER INPUT:
%s

AGENT REPLY:
%s

Return ONLY JSON:
{
  "commands": [
    {"command": "remember_fact|update_profile|none", "content": "", "category": "user|system|context|chat|dream"}
  ],
  "confidence": 0.0-1.0
}`, input, reply)
}

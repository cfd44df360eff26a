package stage

import (
	"context"
	"encoding/json"
	"log"

	"github.com/mkern/psyche/internal/emotion"
	"github.com/mkern/psyche/internal/llm"
)

// RewardStage evaluates how well the reply served the user and turns
// that into small motivational adjustments. Runs in the background
// fan-out after the response is already delivered.
type RewardStage struct {
	LLM       llm.Client
	MaxTokens int
}

func (s *RewardStage) Name() string { return NameReward }

func (s *RewardStage) Run(ctx context.Context, rc *Context) (*Result, error) {
	reply := ""
	if r := rc.Result(NameSynthesis); r != nil && r.Reply != nil {
		reply = r.Reply.Text
	}

	resp, err := llm.CompleteOnce(ctx, s.LLM, llm.RewardPrompt(rc.Input, reply), s.MaxTokens)
	if err != nil {
		log.Printf("reward: completion failed, skipping: %v", err)
		return &Result{Stage: NameReward, Degraded: true, Reward: &Reward{}}, nil
	}

	var wire struct {
		Reward
		Confidence float64 `json:"confidence"`
	}
	raw, err := extractJSON(resp.Content)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &wire)
	}
	if err != nil {
		log.Printf("reward: unparseable response, skipping: %v", err)
		return &Result{Stage: NameReward, Degraded: true, Reward: &Reward{}}, nil
	}

	rw := wire.Reward
	rw.Satisfaction = clamp(rw.Satisfaction, 0, 1)
	rw.PredictionError = clamp(rw.PredictionError, -1, 1)
	rw.HabitSignal = clamp(rw.HabitSignal, 0, 1)

	return &Result{
		Stage:      NameReward,
		Confidence: clamp(wire.Confidence, 0, 1),
		Deltas:     rewardDeltas(rw),
		Reward:     &rw,
	}, nil
}

// rewardDeltas maps the evaluation onto the affect vector. A satisfying
// exchange reinforces motivation and happiness; a poor one costs
// motivation and adds a little frustration.
func rewardDeltas(r Reward) []emotion.Delta {
	switch {
	case r.Satisfaction >= 0.7:
		return []emotion.Delta{
			{Dimension: emotion.Motivation, Delta: 0.05 * r.HabitSignal, Reason: "interaction went well"},
			{Dimension: emotion.Happiness, Delta: 0.03, Reason: "interaction went well"},
		}
	case r.Satisfaction <= 0.3:
		return []emotion.Delta{
			{Dimension: emotion.Motivation, Delta: -0.03, Reason: "interaction went poorly"},
			{Dimension: emotion.Frustration, Delta: 0.05, Reason: "interaction went poorly"},
		}
	}
	return nil
}

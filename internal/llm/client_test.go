package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mkern/psyche/internal/config"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{"anthropic with key", config.LLMConfig{Provider: "anthropic", AnthropicKey: "sk-test"}, false},
		{"anthropic without key", config.LLMConfig{Provider: "anthropic"}, true},
		{"ollama defaults", config.LLMConfig{Provider: "ollama"}, false},
		{"unknown provider", config.LLMConfig{Provider: "gpt-9"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}

func TestRetryableClassification(t *testing.T) {
	pe := &ProviderError{Provider: "test", Kind: KindRateLimited, Err: errors.New("429")}
	if !Retryable(pe) {
		t.Error("ProviderError not retryable")
	}
	if !Retryable(fmt.Errorf("stage: %w", pe)) {
		t.Error("wrapped ProviderError not retryable")
	}
	if Retryable(errors.New("parse error")) {
		t.Error("plain error retryable")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
		typed  bool
	}{
		{429, KindRateLimited, true},
		{504, KindTimeout, true},
		{500, KindUnavailable, true},
		{503, KindUnavailable, true},
		{400, "", false},
	}

	for _, tt := range tests {
		err := classifyStatus("test", tt.status, []byte("body"))
		var pe *ProviderError
		if errors.As(err, &pe) != tt.typed {
			t.Errorf("status %d: typed = %v, want %v", tt.status, !tt.typed, tt.typed)
			continue
		}
		if tt.typed && pe.Kind != tt.kind {
			t.Errorf("status %d: kind = %s, want %s", tt.status, pe.Kind, tt.kind)
		}
	}
}

// flakyClient fails n times before succeeding.
type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) Complete(ctx context.Context, prompt string, maxTokens int) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &ProviderError{Provider: "flaky", Kind: KindUnavailable, Err: errors.New("down")}
	}
	return &Response{Content: "ok", Provider: "flaky"}, nil
}

func TestCompleteOnceRetriesExactlyOnce(t *testing.T) {
	old := retryBackoff
	retryBackoff = time.Millisecond
	defer func() { retryBackoff = old }()

	t.Run("recovers after one failure", func(t *testing.T) {
		c := &flakyClient{failures: 1}
		resp, err := CompleteOnce(context.Background(), c, "hi", 64)
		if err != nil {
			t.Fatalf("CompleteOnce: %v", err)
		}
		if resp.Content != "ok" || c.calls != 2 {
			t.Errorf("content=%q calls=%d", resp.Content, c.calls)
		}
	})

	t.Run("gives up after second failure", func(t *testing.T) {
		c := &flakyClient{failures: 5}
		_, err := CompleteOnce(context.Background(), c, "hi", 64)
		if err == nil {
			t.Fatal("expected error")
		}
		if c.calls != 2 {
			t.Errorf("calls = %d, want exactly 2", c.calls)
		}
	})

	t.Run("does not retry plain errors", func(t *testing.T) {
		m := &MockClient{Err: errors.New("bad prompt")}
		_, err := CompleteOnce(context.Background(), m, "hi", 64)
		if err == nil {
			t.Fatal("expected error")
		}
		if m.CallCount() != 1 {
			t.Errorf("calls = %d, want 1", m.CallCount())
		}
	})
}

func TestMockScripting(t *testing.T) {
	m := &MockClient{Responses: []*Response{
		{Content: "first"},
		{Content: "second"},
	}}

	ctx := context.Background()
	r1, _ := m.Complete(ctx, "a", 64)
	r2, _ := m.Complete(ctx, "b", 64)
	r3, _ := m.Complete(ctx, "c", 64)

	if r1.Content != "first" || r2.Content != "second" || r3.Content != "second" {
		t.Errorf("scripted responses: %q, %q, %q", r1.Content, r2.Content, r3.Content)
	}
	if m.CallCount() != 3 {
		t.Errorf("call count = %d", m.CallCount())
	}
}

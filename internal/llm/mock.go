package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for the Client interface. It pops responses
// in order, repeating the last one once the script runs out.
type MockClient struct {
	mu        sync.Mutex
	Responses []*Response
	Err       error
	Delay     func() // optional hook, runs before answering
	Calls     []string
}

// NewMock builds a mock that always returns content.
func NewMock(content string) *MockClient {
	return &MockClient{Responses: []*Response{{Content: content, Provider: "mock"}}}
}

// Complete records the prompt and returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, prompt string, maxTokens int) (*Response, error) {
	if m.Delay != nil {
		m.Delay()
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: "mock", Kind: KindTimeout, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &Response{Provider: "mock"}, nil
	}
	resp := m.Responses[0]
	if len(m.Responses) > 1 {
		m.Responses = m.Responses[1:]
	}
	return resp, nil
}

// CallCount returns how many completions were requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

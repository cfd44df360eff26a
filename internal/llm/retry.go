package llm

import (
	"context"
	"time"
)

// retryBackoff is the pause before the single retry attempt.
var retryBackoff = 500 * time.Millisecond

// CompleteOnce calls the client with exactly one bounded retry on
// retryable provider errors. Anything beyond that is the caller's
// degradation path; stages must never loop on a sick provider.
func CompleteOnce(ctx context.Context, c Client, prompt string, maxTokens int) (*Response, error) {
	resp, err := c.Complete(ctx, prompt, maxTokens)
	if err == nil || !Retryable(err) {
		return resp, err
	}

	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(retryBackoff):
	}

	return c.Complete(ctx, prompt, maxTokens)
}

package emotion

import "sync"

// Queue collects delta proposals during one request. Stages append in
// completion order; proposals are invisible to other stages until the
// orchestrator applies the whole queue after synthesis.
type Queue struct {
	mu     sync.Mutex
	deltas []Delta
}

// Propose appends one delta proposal.
func (q *Queue) Propose(dim Dimension, delta float64, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deltas = append(q.deltas, Delta{Dimension: dim, Delta: delta, Reason: reason})
}

// ProposeAll appends a batch of proposals, preserving their order.
func (q *Queue) ProposeAll(deltas []Delta) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deltas = append(q.deltas, deltas...)
}

// Drain returns the queued proposals and empties the queue.
func (q *Queue) Drain() []Delta {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.deltas
	q.deltas = nil
	return out
}

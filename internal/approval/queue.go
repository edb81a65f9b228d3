// Package approval provides the in-memory queue of proposals waiting for a
// human decision. The queue is process-local: running several agent
// instances against the same target is unsupported.
package approval

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/types"
)

// ErrNotFound is returned when resolving an id that is not queued. An id
// that was already approved or rejected is gone, so a second resolution of
// the same id fails with this error rather than executing twice.
var ErrNotFound = errors.New("approval not found")

// Queue holds pending approvals keyed by a monotonic id. Ids are allocated
// from a counter independent of queue size, so a popped id is never reused
// within the process lifetime.
type Queue struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]types.PendingApproval
}

// NewQueue creates an empty approval queue.
func NewQueue() *Queue {
	return &Queue{pending: make(map[uint64]types.PendingApproval)}
}

// Enqueue inserts a proposal and returns its assigned id.
func (q *Queue) Enqueue(p types.Proposal, alert types.Alert, confidence float64, reason string) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	id := q.nextID
	q.pending[id] = types.PendingApproval{
		ID:         id,
		Action:     p.Action,
		Args:       p.Args,
		Alert:      alert,
		Confidence: confidence,
		Reason:     reason,
		EnqueuedAt: time.Now().UTC(),
	}
	return id
}

// List returns pending approvals ordered by id (insertion order).
func (q *Queue) List() []types.PendingApproval {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.PendingApproval, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of pending approvals.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Approve atomically removes the entry and returns it for execution.
func (q *Queue) Approve(id uint64) (types.PendingApproval, error) {
	return q.pop(id)
}

// Reject atomically removes the entry and discards it, returning the action
// name for acknowledgment.
func (q *Queue) Reject(id uint64) (string, error) {
	p, err := q.pop(id)
	if err != nil {
		return "", err
	}
	return p.Action, nil
}

func (q *Queue) pop(id uint64) (types.PendingApproval, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[id]
	if !ok {
		return types.PendingApproval{}, ErrNotFound
	}
	delete(q.pending, id)
	return p, nil
}

// Package approval bridges executions suspended on a human decision to the
// asynchronous resolve events that deliver it (an operator approving or
// rejecting from a dashboard or the CLI).
package approval

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the default timeout for pending approvals (5 minutes).
// The timeout is enforced by the caller racing the Register channel against
// a timer, not by the broker itself.
const DefaultTimeout = 5 * time.Minute

// Pending represents a command awaiting human approval.
type Pending struct {
	ID          string    `json:"id"`
	Command     string    `json:"command"`
	Cwd         string    `json:"cwd"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewPending creates a Pending with a fresh unique id and the current time.
func NewPending(command, cwd, reason string) Pending {
	return Pending{
		ID:          uuid.NewString(),
		Command:     command,
		Cwd:         cwd,
		Reason:      reason,
		RequestedAt: time.Now(),
	}
}

// Broker tracks in-flight approvals and delivers resolutions at most once.
// It is safe for concurrent use.
type Broker struct {
	mu      sync.Mutex
	waiters map[string]chan bool
	pending map[string]Pending
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		waiters: make(map[string]chan bool),
		pending: make(map[string]Pending),
	}
}

// Register stores the pending approval and returns the channel the waiting
// execution suspends on. The channel receives exactly one value: the
// approve/reject decision. Callers that stop waiting (timeout, cancellation)
// must call Remove to deregister the id.
func (b *Broker) Register(p Pending) <-chan bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Buffered so Resolve never blocks even if the waiter has moved on.
	ch := make(chan bool, 1)
	b.waiters[p.ID] = ch
	b.pending[p.ID] = p
	return ch
}

// Resolve completes the approval identified by id with the given decision.
// Returns true if a waiter was resolved; false if the id is unknown (already
// resolved, timed out, or never registered). Resolution is at-most-once: a
// second Resolve for the same id always returns false.
func (b *Broker) Resolve(id string, approved bool) bool {
	b.mu.Lock()
	ch, ok := b.waiters[id]
	if ok {
		delete(b.waiters, id)
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	ch <- approved
	return true
}

// Remove deregisters a pending approval without resolving it. Returns true
// if the id was still registered. Used by the waiter when its timeout fires
// first, ensuring any later Resolve for the id is a detectable no-op.
func (b *Broker) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.waiters[id]; !ok {
		return false
	}
	delete(b.waiters, id)
	delete(b.pending, id)
	return true
}

// Get retrieves a pending approval by id.
func (b *Broker) Get(id string) (Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[id]
	return p, ok
}

// Pending returns a snapshot of all pending approvals, oldest first.
func (b *Broker) Pending() []Pending {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]Pending, 0, len(b.pending))
	for _, p := range b.pending {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.Before(result[j].RequestedAt)
	})
	return result
}

// Len returns the number of pending approvals.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}

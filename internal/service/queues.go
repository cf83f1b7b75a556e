package service

import (
	"sync"

	"github.com/sciforge/rangeagent/internal/domain/model"
)

// pendingQueue holds finished outcome messages awaiting a stage-out flush.
// It is the only structure shared between the outcome router (producer) and
// the stage-out scheduler (consumer), so push and drain serialize on one
// mutex. Entries carry no ordering guarantee beyond FIFO arrival.
type pendingQueue struct {
	mu   sync.Mutex
	msgs []model.OutcomeMessage
}

// Push appends one message.
func (q *pendingQueue) Push(msg model.OutcomeMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
}

// Drain atomically removes and returns the entire queue contents.
func (q *pendingQueue) Drain() []model.OutcomeMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.msgs
	q.msgs = nil
	return out
}

// Requeue puts a failed batch back at the front so a retry drains it first.
func (q *pendingQueue) Requeue(batch []model.OutcomeMessage) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(batch, q.msgs...)
}

// Len returns the number of queued messages.
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Reset empties the queue.
func (q *pendingQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = nil
}

// auditLog is the append-only history of every outcome message received
// during one job run. Cleanup consults it to decide which artifacts to
// remove, then clears it.
type auditLog struct {
	mu      sync.Mutex
	entries []model.OutcomeMessage
}

// Append records one message.
func (l *auditLog) Append(msg model.OutcomeMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
}

// Snapshot returns a copy of all recorded entries.
func (l *auditLog) Snapshot() []model.OutcomeMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.OutcomeMessage, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *auditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset clears the history.
func (l *auditLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

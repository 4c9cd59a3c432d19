package engine

import (
	"sync"

	"github.com/roach88/incr/internal/work"
)

// unitQueue is a thread-safe FIFO of units waiting to run.
//
// Producers call Enqueue from any goroutine; the session's Run loop is the
// only consumer. The buffered signal channel lets Run wait on the context
// and on new work at the same time.
type unitQueue struct {
	mu     sync.Mutex
	units  []work.UnitOfWork
	closed bool
	signal chan struct{}
}

func newUnitQueue() *unitQueue {
	return &unitQueue{
		units:  make([]work.UnitOfWork, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a unit. It returns false once the queue is closed.
func (q *unitQueue) Enqueue(u work.UnitOfWork) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.units = append(q.units, u)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front unit without blocking.
func (q *unitQueue) TryDequeue() (work.UnitOfWork, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.units) == 0 {
		return nil, false
	}
	u := q.units[0]
	// Release the reference so a finished unit can be collected.
	q.units[0] = nil
	if len(q.units) == 1 {
		q.units = q.units[:0]
	} else {
		q.units = q.units[1:]
	}
	return u, true
}

// Wait returns a channel that fires when units may be available, and is
// closed by Close.
func (q *unitQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *unitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}

// Close stops accepting units and wakes the consumer.
func (q *unitQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

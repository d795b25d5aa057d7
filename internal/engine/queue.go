package engine

import (
	"context"
	"sync"
)

// request is one queued submission awaiting its outcome.
type request struct {
	ctx   context.Context // submitter's context
	inv   Invocation
	reply chan outcome
}

type outcome struct {
	result Result
	err    error
}

// requestQueue is a thread-safe FIFO queue of submissions.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type requestQueue struct {
	mu       sync.Mutex
	requests []*request
	closed   bool
	signal   chan struct{} // Signals availability (buffered, size 1)
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]*request, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Non-blocking: a buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *requestQueue) TryDequeue() (*request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil, false
	}

	r := q.requests[0]
	// Nil out the slot so the backing array does not retain the request
	q.requests[0] = nil
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}

	return r, true
}

// Remove withdraws r if it is still queued. It reports false once Run has
// taken r, in which case r will receive exactly one reply.
func (q *requestQueue) Remove(r *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, queued := range q.requests {
		if queued == r {
			copy(q.requests[i:], q.requests[i+1:])
			q.requests[len(q.requests)-1] = nil
			q.requests = q.requests[:len(q.requests)-1]
			return true
		}
	}
	return false
}

// Wait returns a channel that signals when requests may be available.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close signals that no more requests will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(data ...byte) *request {
	return &request{ctx: context.Background(), inv: Invocation{Data: data}, reply: make(chan outcome, 1)}
}

func TestRequestQueue_EnqueueDequeue(t *testing.T) {
	q := newRequestQueue()

	ok := q.Enqueue(newTestRequest(1))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, []byte{1}, got.inv.Data)
}

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	for i := byte(1); i <= 3; i++ {
		q.Enqueue(newTestRequest(i))
	}

	for i := byte(1); i <= 3; i++ {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, []byte{i}, r.inv.Data)
	}
}

func TestRequestQueue_TryDequeue_Empty(t *testing.T) {
	q := newRequestQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestRequestQueue_WaitSignals(t *testing.T) {
	q := newRequestQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(newTestRequest(7))
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("Wait did not signal after enqueue")
	}
	r, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, []byte{7}, r.inv.Data)
}

func TestRequestQueue_Close(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(newTestRequest(1))
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(newTestRequest(2)), "enqueue after close should fail")

	// Already queued requests survive the close
	assert.Equal(t, 1, q.Len())
	_, ok := q.TryDequeue()
	assert.True(t, ok)

}

func TestRequestQueue_CloseWakesWaiters(t *testing.T) {
	q := newRequestQueue()
	q.Close()

	select {
	case _, open := <-q.Wait():
		assert.False(t, open, "signal channel should be closed")
	default:
		t.Fatal("Wait should not block after close")
	}
}

func TestRequestQueue_ConcurrentEnqueue(t *testing.T) {
	q := newRequestQueue()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(newTestRequest())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}

func TestRequestQueue_Remove(t *testing.T) {
	q := newRequestQueue()
	first, second, third := newTestRequest(1), newTestRequest(2), newTestRequest(3)
	q.Enqueue(first)
	q.Enqueue(second)
	q.Enqueue(third)

	assert.True(t, q.Remove(second))
	assert.False(t, q.Remove(second), "already removed")
	assert.Equal(t, 2, q.Len())

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.False(t, q.Remove(first), "dequeued requests cannot be withdrawn")

	got, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Same(t, third, got)
}

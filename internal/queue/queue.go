// Package queue is the in-memory FIFO hand-off between webhook intake and
// the processing workers. Contents are lost when the process exits.
package queue

import (
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is used when a non-positive capacity is requested
const DefaultCapacity = 1024

var (
	// ErrQueueFull is returned by Push when the queue is at capacity. The
	// item is dropped; producers never block.
	ErrQueueFull = errors.New("queue full")

	// ErrQueueClosed is returned by Push after Close, and by Pop once a
	// closed queue has been drained
	ErrQueueClosed = errors.New("queue closed")
)

// Memory is a bounded FIFO of depot paths supporting concurrent producers
// and consumers
type Memory struct {
	items  chan string
	mu     sync.RWMutex
	closed bool
}

// NewMemory creates a queue holding at most capacity pending items
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{items: make(chan string, capacity)}
}

// Push appends path without blocking
func (q *Memory) Push(path string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.items <- path:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop blocks until an item is available, ctx is done, or the queue is
// closed and empty
func (q *Memory) Pop(ctx context.Context) (string, error) {
	select {
	case path, ok := <-q.items:
		if !ok {
			return "", ErrQueueClosed
		}
		return path, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len returns the number of pending items
func (q *Memory) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity
func (q *Memory) Cap() int {
	return cap(q.items)
}

// Close stops accepting items. Pending items can still be popped.
func (q *Memory) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
}

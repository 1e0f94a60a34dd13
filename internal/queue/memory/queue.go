// Package memory provides a queue implementation for single-process
// deployments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmallory/pagefeed/internal/feed"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan feed.QueueItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan feed.QueueItem, capacity),
	}
}

// Enqueue pushes a job into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item feed.QueueItem) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (feed.QueueItem, error) {
	select {
	case <-ctx.Done():
		return feed.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return feed.QueueItem{}, errors.New("queue closed")
		}
		return item, nil
	}
}

// Depth reports how many items sit in the buffer awaiting a worker.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

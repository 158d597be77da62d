package notification

import (
	"context"
	"sync"

	"library-catalog/internal/errors"
)

// Handler processes one message taken off a queue. A nil return acknowledges
// the message.
type Handler func(ctx context.Context, msg Message) error

type Queue interface {
	// Publish enqueues msg without waiting for delivery.
	Publish(ctx context.Context, msg Message) error
	// Consume calls handle for each message until ctx is done or the queue is
	// closed and drained.
	Consume(ctx context.Context, handle Handler) error
	Close() error
}

// MemoryQueue is a bounded in-process queue. Messages still buffered when the
// process exits are lost.
type MemoryQueue struct {
	mu     sync.RWMutex
	ch     chan Message
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Message, size)}
}

func (q *MemoryQueue) Publish(_ context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return errors.ErrQueueClosed
	}

	select {
	case q.ch <- msg:
		return nil
	default:
		return errors.ErrQueueFull
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-q.ch:
			if !ok {
				return nil
			}
			_ = handle(ctx, msg)
		}
	}
}

// Close stops accepting messages. Consumers finish what is buffered.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}

// Len reports the number of buffered messages.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

package queue

import (
	"context"
	"sync"
)

// Memory is an unbounded in-process FIFO.
type Memory struct {
	mu     sync.Mutex
	items  []Message
	closed bool
}

var _ Queue = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (q *Memory) Put(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, m)
	return nil
}

func (q *Memory) TryGet(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.closed {
			return Message{}, ErrClosed
		}
		return Message{}, ErrEmpty
	}
	m := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	return m, nil
}

// Len is the number of queued messages.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further puts. Messages already queued can still be taken.
func (q *Memory) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

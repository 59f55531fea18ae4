// Package queue moves tasks and results between a controller and workers.
// Every transport offers the same non-blocking Queue; callers poll.
package queue

import (
	"context"
	"errors"
	"time"

	"phredmean/pkg/api"
)

var (
	// ErrEmpty is returned by TryGet when no message is ready.
	ErrEmpty = errors.New("queue: empty")
	// ErrClosed is returned once a queue or its connection is closed.
	ErrClosed = errors.New("queue: closed")
	// ErrAuth is returned when a peer presents the wrong key.
	ErrAuth = errors.New("queue: authentication failed")
)

// Kind tells the receiver what a message carries.
type Kind string

const (
	KindTask   Kind = "task"
	KindResult Kind = "result"
	// KindStop tells a worker to exit. Each worker that receives it puts it
	// back so the next one sees it too.
	KindStop Kind = "stop"
)

// Message is the unit carried by every transport. SentAt is stamped on stop
// messages so a worker can tell one left over from an earlier run.
type Message struct {
	Kind   Kind               `json:"kind"`
	RunID  string             `json:"run_id,omitempty"`
	SentAt time.Time          `json:"sent_at,omitzero"`
	Task   *api.TaskV1        `json:"task,omitempty"`
	Result *api.ChunkResultV1 `json:"result,omitempty"`
}

// Queue is a FIFO of messages. Implementations are safe for concurrent use.
type Queue interface {
	Put(ctx context.Context, m Message) error
	TryGet(ctx context.Context) (Message, error)
	Close() error
}

// Poll calls TryGet until a message arrives, sleeping interval between empty
// polls. The sleep ends early when ctx is done.
func Poll(ctx context.Context, q Queue, interval time.Duration) (Message, error) {
	for {
		m, err := q.TryGet(ctx)
		if !errors.Is(err, ErrEmpty) {
			return m, err
		}
		if err := Sleep(ctx, interval); err != nil {
			return Message{}, err
		}
	}
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

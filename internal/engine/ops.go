package engine

import (
	"context"
	"errors"
	"fmt"

	"phredmean/internal/plan"
	"phredmean/internal/stats"
)

// Op names an operation a worker may be asked to run. Only ops registered in
// a handler table can be executed; no code travels with a task.
type Op string

const (
	OpComputeQualityStats Op = "compute_quality_stats"
)

// ErrUnknownOp is returned for ops missing from the handler table.
var ErrUnknownOp = errors.New("unknown op")

// Task is one unit of remote work.
type Task struct {
	Op   Op
	Item plan.WorkItem
}

// Handler runs one op on one work item.
type Handler func(ctx context.Context, item plan.WorkItem) (stats.Partial, error)

// Handlers is the engine's op table.
func (e *Engine) Handlers() map[Op]Handler {
	return map[Op]Handler{
		OpComputeQualityStats: e.Process,
	}
}

// ParseOp validates an op name read off the wire.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpComputeQualityStats:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, s)
}

// Dispatch runs task through handlers.
func Dispatch(ctx context.Context, handlers map[Op]Handler, task Task) (stats.Partial, error) {
	h, ok := handlers[task.Op]
	if !ok {
		return stats.Partial{}, fmt.Errorf("%w: %q", ErrUnknownOp, task.Op)
	}
	return h(ctx, task.Item)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"phredmean/internal/engine"
	"phredmean/internal/fastq"
	"phredmean/internal/metrics"
	"phredmean/internal/plan"
	"phredmean/internal/queue"
	"phredmean/internal/stats"
)

// Processor is the minimal capability a coordinator needs. *engine.Engine
// satisfies it; tests use fakes.
type Processor interface {
	Process(ctx context.Context, item plan.WorkItem) (stats.Partial, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, item plan.WorkItem) (stats.Partial, error)

func (f ProcessorFunc) Process(ctx context.Context, item plan.WorkItem) (stats.Partial, error) {
	return f(ctx, item)
}

// Coordinator processes every item and returns the partials in item order.
type Coordinator interface {
	Submit(ctx context.Context, items []plan.WorkItem) ([]stats.Partial, error)
}

var (
	_ Processor   = (*engine.Engine)(nil)
	_ Coordinator = (*Pool)(nil)
	_ Coordinator = (*ScatterGather)(nil)
	_ Coordinator = (*QueueCoordinator)(nil)
)

// Retry bounds the attempts per work item. Backoff is multiplied by the
// number of failures so far.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry tries every item three times.
var DefaultRetry = Retry{Attempts: 3, Backoff: 100 * time.Millisecond}

func (r Retry) attempts() int {
	if r.Attempts < 1 {
		return 1
	}
	return r.Attempts
}

func (r Retry) wait(failures int) time.Duration {
	return r.Backoff * time.Duration(failures)
}

// ChunkError reports a work item that failed on every attempt.
type ChunkError struct {
	Item     plan.WorkItem
	Attempts int
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %s failed after %d attempt(s): %v", e.Item, e.Attempts, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// permanent errors fail the same way on every attempt.
func permanent(err error) bool {
	var fe *fastq.FormatError
	return errors.As(err, &fe) ||
		errors.Is(err, engine.ErrSourceChanged) ||
		errors.Is(err, engine.ErrUnknownOp)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// processWithRetry runs one item until it succeeds, fails permanently or
// runs out of attempts. Context errors are never retried.
func processWithRetry(ctx context.Context, p Processor, item plan.WorkItem, retry Retry, logger log.Logger, m *metrics.Metrics) (stats.Partial, error) {
	limit := retry.attempts()
	var err error
	attempt := 0
	for attempt < limit {
		if attempt > 0 {
			m.Retry()
			if serr := queue.Sleep(ctx, retry.wait(attempt)); serr != nil {
				return stats.Partial{}, serr
			}
		}
		attempt++

		start := time.Now()
		var part stats.Partial
		part, err = p.Process(ctx, item)
		if err == nil {
			m.ObserveChunk(metrics.ResultOK, part.Records, time.Since(start))
			return part, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats.Partial{}, ctxErr
		}
		if isContextErr(err) {
			return stats.Partial{}, err
		}
		m.ObserveChunk(metrics.ResultError, 0, time.Since(start))
		level.Warn(logger).Log("msg", "chunk failed", "item", item, "attempt", attempt, "err", err)
		if permanent(err) {
			break
		}
	}
	return stats.Partial{}, &ChunkError{Item: item, Attempts: attempt, Err: err}
}


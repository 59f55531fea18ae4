package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"phredmean/internal/logging"
	"phredmean/internal/metrics"
	"phredmean/internal/plan"
	"phredmean/internal/stats"
)

// ScatterGather runs Ranks equal peers in rounds: each round hands at most
// one item to every rank, waits for all of them, then gathers the partials.
type ScatterGather struct {
	Processor Processor
	Ranks     int
	Retry     Retry
	Logger    log.Logger
	Metrics   *metrics.Metrics
}

func (s *ScatterGather) Submit(ctx context.Context, items []plan.WorkItem) ([]stats.Partial, error) {
	ranks := max(s.Ranks, 1)
	logger := logging.OrNop(s.Logger)
	out := make([]stats.Partial, len(items))

	for round, lo := 0, 0; lo < len(items); round, lo = round+1, lo+ranks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+ranks, len(items))

		errs := make([]error, hi-lo)
		var wg sync.WaitGroup
		for rank := range hi - lo {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out[lo+rank], errs[rank] = processWithRetry(ctx, s.Processor, items[lo+rank], s.Retry, logger, s.Metrics)
			}()
		}
		wg.Wait()

		if err := firstError(ctx, errs); err != nil {
			return nil, err
		}
		level.Debug(logger).Log("msg", "round gathered", "round", round, "items", hi-lo)
	}
	return out, nil
}

// firstError prefers the context error, then a chunk failure.
func firstError(ctx context.Context, errs []error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ce *ChunkError
		if errors.As(err, &ce) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

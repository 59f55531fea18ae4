package pipeline

import (
	"context"
	"runtime"

	"github.com/go-kit/log"
	"golang.org/x/sync/errgroup"

	"phredmean/internal/logging"
	"phredmean/internal/metrics"
	"phredmean/internal/plan"
	"phredmean/internal/stats"
)

// Pool processes items on at most Workers goroutines. The first item that
// exhausts its retries cancels the rest.
type Pool struct {
	Processor Processor
	Workers   int // <1 means runtime.NumCPU()
	Retry     Retry
	Logger    log.Logger
	Metrics   *metrics.Metrics
}

func (p *Pool) Submit(ctx context.Context, items []plan.WorkItem) ([]stats.Partial, error) {
	workers := p.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	logger := logging.OrNop(p.Logger)
	out := make([]stats.Partial, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, it := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			part, err := processWithRetry(gctx, p.Processor, it, p.Retry, logger, p.Metrics)
			if err != nil {
				return err
			}
			out[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

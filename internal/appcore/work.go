package appcore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"phredmean/internal/engine"
	"phredmean/internal/logging"
	"phredmean/internal/metrics"
	"phredmean/internal/pipeline"
	"phredmean/internal/runutil"
)

// WorkOptions configure a worker host.
type WorkOptions struct {
	Transport    Transport
	Loops        int // <1 means runtime.NumCPU()
	PollInterval time.Duration
	Engine       engine.Config
	Name         string // defaults to host:pid
	Logger       log.Logger
	Metrics      *metrics.Metrics
}

// Work runs Loops worker loops, each on its own connection, until they are
// told to stop or ctx is done.
func Work(ctx context.Context, o WorkOptions) error {
	loops := runutil.EffectiveWorkers(o.Loops)
	base := o.Name
	if base == "" {
		base = pipeline.DefaultWorkerName()
	}
	handlers := engine.New(o.Engine).Handlers()
	logger := logging.OrNop(o.Logger)
	since := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < loops; i++ {
		name := fmt.Sprintf("%s/%d", base, i)
		g.Go(func() error {
			ep, err := o.Transport.Worker(gctx, name)
			if err != nil {
				return err
			}
			defer ep.Close()
			w := &pipeline.Worker{
				Jobs:         ep.Jobs,
				Results:      ep.Results,
				Handlers:     handlers,
				PollInterval: o.PollInterval,
				Since:        since,
				Name:         name,
				Logger:       logger,
				Metrics:      o.Metrics,
			}
			return w.Run(gctx)
		})
	}
	level.Info(logger).Log("msg", "worker loops started", "loops", loops, "name", base)
	return g.Wait()
}

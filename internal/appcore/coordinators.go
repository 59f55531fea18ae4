package appcore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"phredmean/internal/checkpoint"
	"phredmean/internal/config"
	"phredmean/internal/engine"
	"phredmean/internal/logging"
	"phredmean/internal/metrics"
	"phredmean/internal/pipeline"
)

func nothing() error { return nil }

// LocalCoordinatorFactory runs chunks in this process, on a worker pool or
// in scatter/gather rounds. With Checkpoint set, computed partials are kept
// in a bbolt file and reused by the next run.
type LocalCoordinatorFactory struct {
	Mode       string
	Retry      pipeline.Retry
	Checkpoint string
	Engine     engine.Config
	Logger     log.Logger
	Metrics    *metrics.Metrics
}

func (f LocalCoordinatorFactory) Coordinator(_ context.Context, workers int) (pipeline.Coordinator, func() error, error) {
	eng := engine.New(f.Engine)
	var proc pipeline.Processor = eng
	release := nothing
	if f.Checkpoint != "" {
		store, err := checkpoint.Open(f.Checkpoint)
		if err != nil {
			return nil, nil, err
		}
		proc = &checkpoint.Processor{Store: store, Next: eng, Metrics: f.Metrics}
		release = store.Close
	}
	switch f.Mode {
	case "", config.ModePool:
		return &pipeline.Pool{Processor: proc, Workers: workers, Retry: f.Retry, Logger: f.Logger, Metrics: f.Metrics}, release, nil
	case config.ModeScatter:
		return &pipeline.ScatterGather{Processor: proc, Ranks: workers, Retry: f.Retry, Logger: f.Logger, Metrics: f.Metrics}, release, nil
	default:
		_ = release()
		return nil, nil, Usage(fmt.Errorf("unknown mode %q", f.Mode))
	}
}

// QueueCoordinatorFactory hands chunks to remote workers over Transport.
type QueueCoordinatorFactory struct {
	Transport      Transport
	Retry          pipeline.Retry
	PollInterval   time.Duration
	RedeliverAfter time.Duration
	KeepWorkers    bool
	Logger         log.Logger
	Metrics        *metrics.Metrics

	// Ready, if set, is called with the controller endpoints before any
	// task is put.
	Ready func(*Endpoints)
}

func (f QueueCoordinatorFactory) Coordinator(ctx context.Context, _ int) (pipeline.Coordinator, func() error, error) {
	ep, err := f.Transport.Controller(ctx)
	if err != nil {
		return nil, nil, err
	}
	if ep.Addr != "" {
		level.Info(logging.OrNop(f.Logger)).Log("msg", "waiting for workers", "addr", ep.Addr)
	}
	if f.Ready != nil {
		f.Ready(ep)
	}
	return &pipeline.QueueCoordinator{
		Jobs:           ep.Jobs,
		Results:        ep.Results,
		Retry:          f.Retry,
		PollInterval:   f.PollInterval,
		RedeliverAfter: f.RedeliverAfter,
		KeepWorkers:    f.KeepWorkers,
		Logger:         f.Logger,
		Metrics:        f.Metrics,
	}, ep.Close, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"phredmean/internal/engine"
	"phredmean/internal/logging"
	"phredmean/internal/metrics"
	"phredmean/internal/plan"
	"phredmean/internal/queue"
	"phredmean/internal/stats"
	"phredmean/pkg/api"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	defaultDedupeSize   = 1 << 16
	stopTimeout         = 5 * time.Second
)

// TaskID names the task for item. Equal ranges share an ID, so a result is
// recognised whichever attempt produced it.
func TaskID(item plan.WorkItem) string {
	return fmt.Sprintf("%016x", item.Key())
}

// QueueCoordinator puts one task per item on Jobs and collects the answers
// from Results. Failed tasks are resubmitted up to Retry.Attempts times;
// tasks unanswered for RedeliverAfter are sent again. Results for other runs
// and duplicate answers are dropped, so each item is reduced exactly once.
// When Submit returns, a stop message is put on Jobs unless KeepWorkers is
// set.
type QueueCoordinator struct {
	Jobs           queue.Queue
	Results        queue.Queue
	Retry          Retry
	PollInterval   time.Duration
	RedeliverAfter time.Duration // 0 disables redelivery
	DedupeSize     int
	KeepWorkers    bool
	RunID          string // generated when empty
	Logger         log.Logger
	Metrics        *metrics.Metrics
}

type inflight struct {
	idx     int
	item    plan.WorkItem
	attempt int
	sentAt  time.Time
}

func (c *QueueCoordinator) Submit(ctx context.Context, items []plan.WorkItem) ([]stats.Partial, error) {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	logger := log.With(logging.OrNop(c.Logger), "run", c.RunID)
	poll := c.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	size := c.DedupeSize
	if size <= 0 {
		size = defaultDedupeSize
	}
	done, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	if !c.KeepWorkers {
		defer c.stopWorkers(ctx, logger)
	}

	pending := make(map[string]*inflight, len(items))
	for i, it := range items {
		id := TaskID(it)
		if _, dup := pending[id]; dup {
			return nil, fmt.Errorf("work item %s planned twice", it)
		}
		f := &inflight{idx: i, item: it, attempt: 1}
		pending[id] = f
		if err := c.send(ctx, id, f); err != nil {
			return nil, err
		}
	}
	level.Info(logger).Log("msg", "tasks submitted", "tasks", len(items))

	out := make([]stats.Partial, len(items))
	for len(pending) > 0 {
		m, err := c.Results.TryGet(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			if err := c.redeliver(ctx, pending, logger); err != nil {
				return nil, err
			}
			if err := queue.Sleep(ctx, poll); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read results: %w", err)
		}

		if m.Kind != queue.KindResult || m.Result == nil {
			level.Debug(logger).Log("msg", "ignoring message", "kind", m.Kind)
			continue
		}
		if m.RunID != c.RunID {
			level.Debug(logger).Log("msg", "ignoring result of another run", "other", m.RunID)
			continue
		}
		r := m.Result
		f, ok := pending[r.TaskID]
		if !ok {
			if done.Contains(r.TaskID) {
				c.Metrics.Duplicate()
				level.Debug(logger).Log("msg", "dropping duplicate result", "task", r.TaskID)
			} else {
				level.Warn(logger).Log("msg", "dropping result for unknown task", "task", r.TaskID)
			}
			continue
		}

		if r.Error != "" {
			if r.Attempt != 0 && r.Attempt < f.attempt {
				// A newer attempt is already out.
				continue
			}
			c.Metrics.ObserveChunk(metrics.ResultError, 0, 0)
			level.Warn(logger).Log("msg", "chunk failed", "item", f.item, "attempt", f.attempt, "worker", r.Worker, "err", r.Error)
			if r.Permanent || f.attempt >= c.Retry.attempts() {
				return nil, &ChunkError{Item: f.item, Attempts: f.attempt, Err: errors.New(r.Error)}
			}
			if err := queue.Sleep(ctx, c.Retry.wait(f.attempt)); err != nil {
				return nil, err
			}
			f.attempt++
			c.Metrics.Retry()
			if err := c.send(ctx, r.TaskID, f); err != nil {
				return nil, err
			}
			continue
		}

		part, err := c.accept(f, r)
		if err != nil {
			return nil, err
		}
		out[f.idx] = part
		delete(pending, r.TaskID)
		done.Add(r.TaskID, struct{}{})
		c.Metrics.ObserveChunk(metrics.ResultOK, part.Records, time.Since(f.sentAt))
	}
	level.Info(logger).Log("msg", "all results gathered", "tasks", len(items))
	return out, nil
}

func (c *QueueCoordinator) accept(f *inflight, r *api.ChunkResultV1) (stats.Partial, error) {
	if r.Partial == nil {
		return stats.Partial{}, fmt.Errorf("result for %s carries neither partial nor error", f.item)
	}
	part, err := stats.PartialFromAPI(*r.Partial)
	if err != nil {
		return stats.Partial{}, fmt.Errorf("result for %s: %w", f.item, err)
	}
	if part.Source != f.item.Source {
		return stats.Partial{}, fmt.Errorf("result for %s names source %q", f.item, part.Source)
	}
	return part, nil
}

func (c *QueueCoordinator) send(ctx context.Context, id string, f *inflight) error {
	f.sentAt = time.Now()
	msg := queue.Message{
		Kind:  queue.KindTask,
		RunID: c.RunID,
		Task: &api.TaskV1{
			ID:      id,
			Op:      string(engine.OpComputeQualityStats),
			Item:    f.item.ToAPI(),
			Attempt: f.attempt,
		},
	}
	if err := c.Jobs.Put(ctx, msg); err != nil {
		return fmt.Errorf("submit %s: %w", f.item, err)
	}
	return nil
}

func (c *QueueCoordinator) redeliver(ctx context.Context, pending map[string]*inflight, logger log.Logger) error {
	if c.RedeliverAfter <= 0 {
		return nil
	}
	now := time.Now()
	for id, f := range pending {
		if now.Sub(f.sentAt) < c.RedeliverAfter {
			continue
		}
		level.Info(logger).Log("msg", "redelivering unanswered task", "item", f.item, "waited", now.Sub(f.sentAt))
		c.Metrics.Retry()
		if err := c.send(ctx, id, f); err != nil {
			return err
		}
	}
	return nil
}

func (c *QueueCoordinator) stopWorkers(ctx context.Context, logger log.Logger) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	stop := queue.Message{Kind: queue.KindStop, RunID: c.RunID, SentAt: time.Now()}
	if err := c.Jobs.Put(sctx, stop); err != nil && !errors.Is(err, queue.ErrClosed) {
		level.Warn(logger).Log("msg", "could not stop workers", "err", err)
	}
}

// Worker takes tasks from Jobs, runs them through Handlers and puts the
// answers on Results. It exits on a stop message, which it puts back for
// the next worker, or when Jobs is closed. A stop is obeyed only if it
// belongs to a run the worker took tasks from or was sent at or after Since
// (when Run started, if zero); older ones are left over from finished runs
// on a durable queue and are consumed without effect.
type Worker struct {
	Jobs         queue.Queue
	Results      queue.Queue
	Handlers     map[engine.Op]engine.Handler
	PollInterval time.Duration
	Since        time.Time
	Name         string
	Logger       log.Logger
	Metrics      *metrics.Metrics
}

// DefaultWorkerName is host:pid.
func DefaultWorkerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

func (w *Worker) Run(ctx context.Context) error {
	logger := log.With(logging.OrNop(w.Logger), "worker", w.Name)
	poll := w.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	started := w.Since
	if started.IsZero() {
		started = time.Now()
	}
	runs := make(map[string]struct{})
	handled := 0
	for {
		m, err := w.Jobs.TryGet(ctx)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			if err := queue.Sleep(ctx, poll); err != nil {
				return err
			}
			continue
		case errors.Is(err, queue.ErrClosed):
			level.Info(logger).Log("msg", "job queue closed", "handled", handled)
			return nil
		case err != nil:
			return err
		}

		switch m.Kind {
		case queue.KindStop:
			if _, ours := runs[m.RunID]; !ours && m.SentAt.Before(started) {
				level.Info(logger).Log("msg", "dropping stop of an earlier run", "run", m.RunID, "sent", m.SentAt)
				continue
			}
			if err := w.Jobs.Put(ctx, m); err != nil && !errors.Is(err, queue.ErrClosed) {
				return fmt.Errorf("pass on stop: %w", err)
			}
			level.Info(logger).Log("msg", "stop received", "handled", handled)
			return nil
		case queue.KindTask:
			runs[m.RunID] = struct{}{}
			res, err := w.handle(ctx, m)
			if err != nil {
				return err
			}
			if err := w.Results.Put(ctx, res); err != nil {
				return fmt.Errorf("put result: %w", err)
			}
			handled++
		default:
			level.Warn(logger).Log("msg", "ignoring message", "kind", m.Kind)
		}
	}
}

// handle runs one task. Failures become error results; only cancellation is
// returned as an error.
func (w *Worker) handle(ctx context.Context, m queue.Message) (queue.Message, error) {
	res := &api.ChunkResultV1{Worker: w.Name}
	reply := queue.Message{Kind: queue.KindResult, RunID: m.RunID, Result: res}
	if m.Task == nil {
		res.Error = "task message without task"
		return reply, nil
	}
	res.TaskID, res.Item, res.Attempt = m.Task.ID, m.Task.Item, m.Task.Attempt

	op, err := engine.ParseOp(m.Task.Op)
	if err != nil {
		res.Error, res.Permanent = err.Error(), true
		return reply, nil
	}
	start := time.Now()
	part, err := engine.Dispatch(ctx, w.Handlers, engine.Task{Op: op, Item: plan.FromAPI(m.Task.Item)})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return queue.Message{}, ctxErr
		}
		w.Metrics.ObserveChunk(metrics.ResultError, 0, time.Since(start))
		res.Error, res.Permanent = err.Error(), permanent(err)
		return reply, nil
	}
	w.Metrics.ObserveChunk(metrics.ResultOK, part.Records, time.Since(start))
	p := part.ToAPI()
	res.Partial = &p
	return reply, nil
}

// Package appcore runs the commands: it plans, coordinates, reduces and
// writes, and maps failures to exit codes.
package appcore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"phredmean/internal/cmdutil"
	"phredmean/internal/config"
	"phredmean/internal/logging"
	"phredmean/internal/metrics"
	"phredmean/internal/pipeline"
	"phredmean/internal/plan"
	"phredmean/internal/runutil"
	"phredmean/internal/stats"
	"phredmean/internal/writers"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitUsage     = 2
	ExitFailure   = 3
	ExitCancelled = 130
)

// UsageError marks a bad invocation (exit 2).
type UsageError struct{ Err error }

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usage wraps err as a *UsageError.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &UsageError{Err: err}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	var (
		ue *UsageError
		se *plan.SourceError
		ce *config.Error
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.As(err, &ue), errors.As(err, &se), errors.As(err, &ce),
		errors.Is(err, plan.ErrNoSources), errors.Is(err, plan.ErrInvalidChunkCount):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// Report prints err to stderr, one "error: <path>: <reason>" line per bad
// source. Cancellation is not reported.
func Report(stderr io.Writer, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if ses := plan.SourceErrors(err); len(ses) > 0 {
		for _, se := range ses {
			cmdutil.Errorf(stderr, "%v", se)
		}
		return
	}
	cmdutil.Errorf(stderr, "%v", err)
}

// Options describe one planned run.
type Options struct {
	Sources       []string
	Workers       int
	Chunks        int
	MinChunkBytes int64
	Quiet         bool

	Logger  log.Logger
	Metrics *metrics.Metrics
}

// CoordinatorFactory builds the coordinator for a run. The returned func
// releases whatever the coordinator holds.
type CoordinatorFactory interface {
	Coordinator(ctx context.Context, workers int) (pipeline.Coordinator, func() error, error)
}

// WriterFactory renders results.
type WriterFactory interface {
	Validate() error
	Start(out io.Writer, bufSize int) (chan<- stats.Result, <-chan error)
}

// Plan discovers the sources and splits them into work items. Chunking
// warnings go to stderr unless quiet.
func Plan(stderr io.Writer, o Options) ([]plan.WorkItem, error) {
	srcs, err := plan.Discover(o.Sources)
	if err != nil {
		return nil, err
	}
	chunks, warns := runutil.ValidateChunking(o.Chunks, o.Workers, len(srcs))
	if !o.Quiet {
		for _, w := range warns {
			fmt.Fprintln(stderr, w)
		}
	}
	minChunk := o.MinChunkBytes
	if minChunk <= 0 {
		minChunk = plan.DefaultMinChunkBytes
	}
	items, err := plan.Plan(srcs, chunks, minChunk)
	if err != nil {
		return nil, err
	}
	var planned int64
	for _, s := range srcs {
		planned += s.Size
	}
	o.Metrics.Planned(planned)
	level.Info(logging.OrNop(o.Logger)).Log("msg", "planned", "sources", len(srcs), "items", len(items), "bytes", planned)
	return items, nil
}

// Run plans, coordinates, reduces and writes. It returns the exit code.
func Run(
	parent context.Context,
	stdout, stderr io.Writer,
	o Options,
	cf CoordinatorFactory,
	wf WriterFactory,
) int {
	if err := wf.Validate(); err != nil {
		Report(stderr, err)
		return ExitUsage
	}
	items, err := Plan(stderr, o)
	if err != nil {
		Report(stderr, err)
		return ExitCode(err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	coord, release, err := cf.Coordinator(ctx, runutil.EffectiveWorkers(o.Workers))
	if err != nil {
		Report(stderr, err)
		return ExitCode(err)
	}
	defer func() {
		if err := release(); err != nil {
			level.Warn(logging.OrNop(o.Logger)).Log("msg", "release coordinator", "err", err)
		}
	}()

	outw := bufio.NewWriter(stdout)
	inCh, writeErr := wf.Start(outw, len(items))

	_, perr := cmdutil.RunStream(ctx, coord, items, func(r stats.Result) error {
		select {
		case inCh <- r:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(inCh)

	if werr := <-writeErr; writers.IsBrokenPipe(werr) {
		return ExitOK
	} else if werr != nil {
		Report(stderr, werr)
		return ExitFailure
	}
	if e := outw.Flush(); writers.IsBrokenPipe(e) {
		return ExitOK
	} else if e != nil {
		Report(stderr, e)
		return ExitFailure
	}

	if perr != nil {
		Report(stderr, perr)
		return ExitCode(perr)
	}
	return ExitOK
}


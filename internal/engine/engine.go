package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"phredmean/internal/fastq"
	"phredmean/internal/plan"
	"phredmean/internal/stats"
)

// DefaultCheckEvery is how many records are processed between context checks.
const DefaultCheckEvery = 4096

// ErrSourceChanged is returned when a file no longer has the size it had
// when the work item was planned.
var ErrSourceChanged = errors.New("source changed since planning")

// Config tunes the engine. The zero value is usable.
type Config struct {
	BufferSize int // read buffer per work item; 0 picks a default
	CheckEvery int // records between cancellation checks; 0 = DefaultCheckEvery
}

type Engine struct{ cfg Config }

func New(c Config) *Engine {
	if c.CheckEvery <= 0 {
		c.CheckEvery = DefaultCheckEvery
	}
	return &Engine{cfg: c}
}

// Process folds the quality lines of every record whose header starts inside
// item's range into a partial. Each call opens its own handle, so calls are
// safe to run concurrently and the result depends only on the file bytes and
// the range.
func (e *Engine) Process(ctx context.Context, item plan.WorkItem) (stats.Partial, error) {
	part := stats.NewPartial(item.Source)
	if err := ctx.Err(); err != nil {
		return part, err
	}

	f, err := os.Open(item.Source)
	if err != nil {
		return part, err
	}
	defer f.Close()

	if item.Size > 0 {
		fi, err := f.Stat()
		if err != nil {
			return part, err
		}
		if fi.Size() != item.Size {
			return part, fmt.Errorf("%s: %w: size %d, planned %d", item.Source, ErrSourceChanged, fi.Size(), item.Size)
		}
	}

	start, err := fastq.Resolve(f, item.Start, item.Stop)
	if err != nil {
		return part, fmt.Errorf("resolve %s: %w", item, err)
	}

	sc := fastq.NewQualityScanner(f, item.Source, start, item.Stop)
	for n := 1; sc.Scan(); n++ {
		if err := part.Add(sc.Quality()); err != nil {
			var fe *fastq.FormatError
			if errors.As(err, &fe) {
				fe.Path, fe.Offset = item.Source, sc.RecordOffset()
			}
			return part, err
		}
		if n%e.cfg.CheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return part, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return part, err
	}
	return part, nil
}

// ProcessStream folds a whole FASTQ stream into one partial. path may be "-"
// for stdin and may be gzip compressed.
func (e *Engine) ProcessStream(ctx context.Context, path string) (stats.Partial, error) {
	part := stats.NewPartial(path)
	err := fastq.StreamQualities(ctx, path, func(qual []byte) error {
		return part.Add(qual)
	})
	return part, err
}

package appcore

import (
	"fmt"
	"io"
	"os"

	"phredmean/internal/stats"
	"phredmean/internal/writers"
)

// ResultWriterFactory writes results to stdout or to -o files.
type ResultWriterFactory struct {
	Format string
	Output string
}

func NewResultWriterFactory(format, output string) ResultWriterFactory {
	return ResultWriterFactory{Format: format, Output: output}
}

// Validate rejects unknown formats and directory outputs before any work
// is done.
func (w ResultWriterFactory) Validate() error {
	if _, ok := writers.ResultWriters[w.Format]; !ok {
		return Usage(fmt.Errorf("unknown output format %q (want one of %v)", w.Format, writers.Formats()))
	}
	if w.Output != "" && w.Output != "-" {
		if fi, err := os.Stat(w.Output); err == nil && fi.IsDir() {
			return Usage(fmt.Errorf("output %s is a directory", w.Output))
		}
	}
	return nil
}

// Start collects results until the channel closes, then writes them all.
func (w ResultWriterFactory) Start(out io.Writer, bufSize int) (chan<- stats.Result, <-chan error) {
	dest := writers.Destination{Output: w.Output, Format: w.Format, Stdout: out}
	return writers.StartResultWriter(func(rs []stats.Result) error {
		if len(rs) == 0 {
			return nil
		}
		return dest.Write(rs)
	}, bufSize)
}

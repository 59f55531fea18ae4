package writers

import (
	"phredmean/internal/stats"
)

// StartResultWriter spins up a writer goroutine for results. Results are
// collected until the channel is closed, then handed to flush in arrival
// order. Broken pipes are not reported.
func StartResultWriter(flush func([]stats.Result) error, bufSize int) (chan<- stats.Result, <-chan error) {
	if bufSize <= 0 {
		bufSize = 64
	}
	in := make(chan stats.Result, bufSize)
	errCh := make(chan error, 1)

	go func() {
		var buf []stats.Result
		for r := range in {
			buf = append(buf, r)
		}
		errCh <- ignoreBrokenPipe(flush(buf))
	}()

	return in, errCh
}

package writers

import (
	"fmt"
	"io"
	"sort"

	"phredmean/internal/output"
	"phredmean/internal/stats"
)

// Options control how results are rendered.
type Options struct {
	// WithSource prints the source path before its csv rows.
	WithSource bool
}

// ResultWriter renders a batch of results to w.
type ResultWriter func(w io.Writer, results []stats.Result, opt Options) error

// ResultWriters maps a format name to its writer. Last registration wins.
var ResultWriters = map[string]ResultWriter{}

// Register adds or replaces the writer for format.
func Register(format string, fn ResultWriter) { ResultWriters[format] = fn }

// Formats lists the registered format names, sorted.
func Formats() []string {
	out := make([]string, 0, len(ResultWriters))
	for f := range ResultWriters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// WriteResults dispatches to the writer registered for format.
func WriteResults(format string, w io.Writer, results []stats.Result, opt Options) error {
	fn, ok := ResultWriters[format]
	if !ok {
		return fmt.Errorf("unknown output format %q (no writer registered)", format)
	}
	return fn(w, results, opt)
}

func init() {
	Register(output.FormatCSV, func(w io.Writer, results []stats.Result, opt Options) error {
		for _, r := range results {
			if err := output.WriteCSV(w, r, opt.WithSource); err != nil {
				return err
			}
		}
		return nil
	})
	Register(output.FormatJSON, func(w io.Writer, results []stats.Result, _ Options) error {
		return output.WriteJSON(w, results)
	})
	Register(output.FormatJSONL, func(w io.Writer, results []stats.Result, _ Options) error {
		in, done := StartPositionJSONLWriter(w, 0)
		for _, r := range results {
			for _, p := range r.Positions() {
				in <- p
			}
		}
		close(in)
		return <-done
	})
	Register(output.FormatParquet, func(w io.Writer, results []stats.Result, _ Options) error {
		return output.WriteParquet(w, results)
	})
}

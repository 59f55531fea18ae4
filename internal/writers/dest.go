package writers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shenwei356/xopen"

	"phredmean/internal/output"
	"phredmean/internal/stats"
)

// Destination routes results to stdout or files.
type Destination struct {
	// Output is the -o value; "" or "-" means Stdout.
	Output string
	Format string
	Stdout io.Writer
}

// PathFor names the file of one source when several sources share one -o
// value: "<dir of output>/<source stem>_<output base>".
func PathFor(output, source string) string {
	dir, name := filepath.Split(output)
	stem := filepath.Base(source)
	for _, ext := range []string{".gz", ".bz2", ".xz", ".zst"} {
		stem = strings.TrimSuffix(stem, ext)
	}
	for _, ext := range []string{".fastq", ".fq"} {
		stem = strings.TrimSuffix(stem, ext)
	}
	return filepath.Join(dir, stem+"_"+name)
}

// Paths lists the files Write would create, nil for stdout.
func (d Destination) Paths(sources []string) []string {
	if d.toStdout() {
		return nil
	}
	if len(sources) == 1 {
		return []string{d.Output}
	}
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = PathFor(d.Output, s)
	}
	return out
}

func (d Destination) toStdout() bool { return d.Output == "" || d.Output == "-" }

// Write renders results. On stdout csv rows follow their source path.
func (d Destination) Write(results []stats.Result) error {
	if d.toStdout() {
		w := d.Stdout
		if w == nil {
			return errors.New("writers: no stdout")
		}
		opt := Options{WithSource: d.Format == output.FormatCSV}
		return ignoreBrokenPipe(WriteResults(d.Format, w, results, opt))
	}
	if len(results) == 1 {
		return writeFile(d.Output, d.Format, results)
	}
	for _, r := range results {
		if err := writeFile(PathFor(d.Output, r.Source), d.Format, []stats.Result{r}); err != nil {
			return err
		}
	}
	return nil
}

// Open creates path for writing; a ".gz" (or other xopen suffix) compresses.
func Open(path string) (io.WriteCloser, error) {
	w, err := xopen.Wopen(path)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return w, nil
}

func writeFile(path, format string, results []stats.Result) error {
	w, err := Open(path)
	if err != nil {
		return err
	}
	if err := WriteResults(format, w, results, Options{}); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

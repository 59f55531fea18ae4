package writers

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phredmean/internal/stats"
	"phredmean/pkg/api"
)

func results() []stats.Result {
	return []stats.Result{
		{Source: "/data/a.fastq", Means: []float64{1, 1, 6, 6}, Counts: []int64{2, 2, 2, 2}, Records: 2},
		{Source: "/data/b.fq.gz", Means: []float64{math.NaN()}, Counts: []int64{0}, Records: 0},
	}
}

func TestUnknownFormatError(t *testing.T) {
	var b bytes.Buffer
	in, done := StartResultWriter(func(rs []stats.Result) error {
		return WriteResults("nope-format", &b, rs, Options{})
	}, 1)
	close(in)
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestFormatsRegistered(t *testing.T) {
	assert.Equal(t, []string{"csv", "json", "jsonl", "parquet"}, Formats())
}

func TestStartResultWriter_CSV(t *testing.T) {
	var b bytes.Buffer
	in, done := StartResultWriter(func(rs []stats.Result) error {
		return WriteResults("csv", &b, rs, Options{WithSource: true})
	}, 0)
	for _, r := range results() {
		in <- r
	}
	close(in)
	require.NoError(t, <-done)
	assert.Equal(t, "/data/a.fastq\n0,1\n1,1\n2,6\n3,6\n/data/b.fq.gz\n0,NaN\n", b.String())
}

func TestJSONL_OneLinePerPosition(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteResults("jsonl", &b, results(), Options{}))

	var rows []api.PositionV1
	sc := bufio.NewScanner(&b)
	for sc.Scan() {
		var p api.PositionV1
		require.NoError(t, json.Unmarshal(sc.Bytes(), &p))
		rows = append(rows, p)
	}
	require.Len(t, rows, 5)
	assert.Equal(t, 3, rows[3].Position)
	assert.Nil(t, rows[4].Mean)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, syscall.EPIPE }

func TestBrokenPipeIsNotAnError(t *testing.T) {
	assert.True(t, IsBrokenPipe(syscall.EPIPE))
	assert.False(t, IsBrokenPipe(nil))

	d := Destination{Format: "csv", Stdout: brokenWriter{}}
	assert.NoError(t, d.Write(results()))
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "a_means.csv"), PathFor("out/means.csv", "/data/a.fastq"))
	assert.Equal(t, "b_means.csv", PathFor("means.csv", "/data/b.fq.gz"))
	assert.Equal(t, filepath.Join("out", "reads.1_m.json"), PathFor("out/m.json", "reads.1.fastq"))
}

func TestDestination_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "means.csv")
	d := Destination{Output: path, Format: "csv"}
	require.NoError(t, d.Write(results()[:1]))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0,1\n1,1\n2,6\n3,6\n", string(b), "no source line in files")
}

func TestDestination_PerSourceFiles(t *testing.T) {
	dir := t.TempDir()
	d := Destination{Output: filepath.Join(dir, "means.csv.gz"), Format: "csv"}
	sources := []string{"/data/a.fastq", "/data/b.fq.gz"}
	paths := d.Paths(sources)
	require.Equal(t, []string{
		filepath.Join(dir, "a_means.csv.gz"),
		filepath.Join(dir, "b_means.csv.gz"),
	}, paths)

	require.NoError(t, d.Write(results()))

	f, err := os.Open(paths[1])
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	var b bytes.Buffer
	_, err = b.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, "0,NaN\n", b.String())
}

func TestDestination_StdoutPaths(t *testing.T) {
	assert.Nil(t, Destination{Output: "-"}.Paths([]string{"a"}))
	assert.Equal(t, []string{"x.csv"}, Destination{Output: "x.csv"}.Paths([]string{"a"}))
}

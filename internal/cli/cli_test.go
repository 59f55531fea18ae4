package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phredmean/internal/config"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	var out, errb bytes.Buffer
	root := NewRootCommand(Env{Stdin: strings.NewReader(stdin), Stdout: &out, Stderr: &errb})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errb.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const twoRecords = "@r1\nACGT\n+\n!!++\n@r2\nACGT\n+\n####\n"

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "phredmean version "))
}

func TestRun_CSV(t *testing.T) {
	fq := writeFile(t, "x.fastq", twoRecords)
	out, errs, err := execute(t, "", "run", "-n", "2", "--min-chunk-bytes", "1", fq)
	require.NoError(t, err, errs)
	assert.Equal(t, fq+"\n0,1\n1,1\n2,6\n3,6\n", out)
}

func TestRun_ConfigFileAndFlagPrecedence(t *testing.T) {
	fq := writeFile(t, "x.fastq", twoRecords)
	cfg := writeFile(t, "c.yaml", "format: jsonl\nworkers: 2\n")

	out, errs, err := execute(t, "", "--config", cfg, "run", fq)
	require.NoError(t, err, errs)
	assert.Equal(t, 4, strings.Count(out, "\n"), "jsonl from the file")
	assert.Contains(t, out, `"position":3`)

	out, errs, err = execute(t, "", "--config", cfg, "run", "--format", "csv", fq)
	require.NoError(t, err, errs)
	assert.True(t, strings.HasPrefix(out, fq+"\n0,1\n"), "flag beats file")
}

func TestRun_ConfigErrors(t *testing.T) {
	fq := writeFile(t, "x.fastq", twoRecords)

	_, errs, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "none.yaml"), "run", fq)
	var ee *ExitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.Code)
	assert.Contains(t, errs, config.ErrCodeNotFound)

	_, _, err = execute(t, "", "run", "--mode", "threads", fq)
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.Code)

	_, _, err = execute(t, "", "run", "--codec", "brotli", fq)
	require.Error(t, err, "unknown codec is a flag parse error")
}

func TestPlan_JSONL(t *testing.T) {
	fq := writeFile(t, "x.fastq", strings.Repeat(twoRecords, 50))
	out, errs, err := execute(t, "", "plan", "--chunks", "3", "--min-chunk-bytes", "1", fq)
	require.NoError(t, err, errs)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"start":0`)
	assert.Contains(t, lines[2], `"index":2`)
}

func TestChunkThenCombine(t *testing.T) {
	a := writeFile(t, "a.fastq", "@r1\nACGT\n+\n!!++\n")
	b := writeFile(t, "b.fastq", "@r2\nACGT\n+\n####\n")

	pa, errs, err := execute(t, "", "chunk", "--source", "reads", a)
	require.NoError(t, err, errs)
	pb, errs, err := execute(t, "", "chunk", "--source", "reads", b)
	require.NoError(t, err, errs)
	assert.Equal(t, 1, strings.Count(pa, "\n"))

	out, errs, err := execute(t, pa+pb, "combine")
	require.NoError(t, err, errs)
	assert.Equal(t, "reads\n0,1\n1,1\n2,6\n3,6\n", out)

	out, errs, err = execute(t, pa+pb, "combine", "--source", "merged", "--format", "json")
	require.NoError(t, err, errs)
	assert.Contains(t, out, `"source": "merged"`)
	assert.Contains(t, out, `"records": 2`)
}

func TestCombine_BadInput(t *testing.T) {
	var ee *ExitError
	_, errs, err := execute(t, "", "combine")
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.Code)
	assert.Contains(t, errs, "no partials")

	_, errs, err = execute(t, `{"source":"x","sum":[1],"count":[],"records":1}`+"\n", "combine")
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.Code)
	assert.Contains(t, errs, "line 1")
}

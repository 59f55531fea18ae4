// internal/integration/integration_test.go
package integration

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"phredmean/internal/app"
)

func write(t *testing.T, fn, data string) string {
	t.Helper()
	if err := os.WriteFile(fn, []byte(data), 0644); err != nil {
		t.Fatalf("write %s: %v", fn, err)
	}
	return fn
}

// randomFASTQ builds n records of varying length; some quality lines start
// with '@'.
func randomFASTQ(n int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	for i := 0; i < n; i++ {
		l := 20 + rng.Intn(80)
		seq := make([]byte, l)
		qual := make([]byte, l)
		for j := range seq {
			seq[j] = "ACGTN"[rng.Intn(5)]
			qual[j] = byte(33 + rng.Intn(42))
		}
		if i%7 == 0 {
			qual[0] = '@'
		}
		fmt.Fprintf(&b, "@read%d/1\n%s\n+\n%s\n", i, seq, qual)
	}
	return b.String()
}

func TestEndToEnd(t *testing.T) {
	fq := write(t, filepath.Join(t.TempDir(), "itest.fastq"), "@r1\nACGT\n+\n!!++\n@r2\nACGT\n+\n####\n")

	var out, errBuf bytes.Buffer
	code := app.Run([]string{"run", fq}, &out, &errBuf)
	if code != 0 {
		t.Fatalf("run exit %d, err=%s", code, errBuf.String())
	}
	if want := fq + "\n0,1\n1,1\n2,6\n3,6\n"; out.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestParallelMatchesEqualSerial(t *testing.T) {
	fq := write(t, filepath.Join(t.TempDir(), "par.fastq"), randomFASTQ(2000, 42))

	run := func(args ...string) string {
		var out, errB bytes.Buffer
		argv := append([]string{"run", "--format", "json", "--min-chunk-bytes", "512"}, args...)
		code := app.Run(append(argv, fq), &out, &errB)
		if code != 0 {
			t.Fatalf("exit %d err %s", code, errB.String())
		}
		return out.String()
	}

	serial := run("-n", "1")
	for _, args := range [][]string{
		{"-n", "4"},
		{"-n", "3", "--chunks", "17"},
		{"-n", "5", "--mode", "scatter"},
	} {
		if got := run(args...); got != serial {
			t.Fatalf("%v output differs from serial\nserial: %s\ngot:%s", args, serial, got)
		}
	}
}

func TestChunkCombineMatchesRun(t *testing.T) {
	dir := t.TempDir()
	data := randomFASTQ(300, 9)
	fq := write(t, filepath.Join(dir, "all.fastq"), data)

	// Split on record boundaries the way `split -l` would.
	lines := strings.SplitAfter(data, "\n")
	half := (len(lines) / 8) * 4
	a := write(t, filepath.Join(dir, "a.fastq"), strings.Join(lines[:half], ""))
	b := write(t, filepath.Join(dir, "b.fastq"), strings.Join(lines[half:], ""))

	var partials bytes.Buffer
	for _, p := range []string{a, b} {
		var errB bytes.Buffer
		if code := app.Run([]string{"chunk", "--source", fq, p}, &partials, &errB); code != 0 {
			t.Fatalf("chunk exit %d: %s", code, errB.String())
		}
	}

	var combined, errB bytes.Buffer
	if code := app.RunIO(t.Context(), []string{"combine"}, &partials, &combined, &errB); code != 0 {
		t.Fatalf("combine exit %d: %s", code, errB.String())
	}
	var direct bytes.Buffer
	if code := app.Run([]string{"run", "-n", "4", fq}, &direct, &errB); code != 0 {
		t.Fatalf("run exit %d: %s", code, errB.String())
	}
	if combined.String() != direct.String() {
		t.Fatalf("combine differs from run\ncombine: %s\nrun: %s", combined.String(), direct.String())
	}
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	fq := write(t, filepath.Join(dir, "ok.fastq"), "@r\nA\n+\nI\n")
	bad := write(t, filepath.Join(dir, "bad.fastq"), "@r\nA\n+\n\x7f\n")

	cases := []struct {
		name string
		argv []string
		want int
	}{
		{"missing file", []string{"run", filepath.Join(dir, "missing.fastq")}, 2},
		{"empty file", []string{"run", write(t, filepath.Join(dir, "empty.fastq"), "")}, 2},
		{"no args", []string{"run"}, 2},
		{"unknown flag", []string{"run", "--frobnicate", fq}, 2},
		{"unknown command", []string{"frobnicate"}, 2},
		{"bad quality", []string{"run", bad}, 3},
		{"help", []string{"--help"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out, errB bytes.Buffer
			if code := app.Run(tc.argv, &out, &errB); code != tc.want {
				t.Fatalf("exit %d, want %d; stderr=%s", code, tc.want, errB.String())
			}
		})
	}
}

func TestMultipleSourcesToFiles(t *testing.T) {
	dir := t.TempDir()
	a := write(t, filepath.Join(dir, "a.fastq"), "@r\nAC\n+\nII\n")
	b := write(t, filepath.Join(dir, "b.fq"), "@r\nA\n+\n5\n")
	dest := filepath.Join(dir, "out", "means.csv")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}

	var out, errB bytes.Buffer
	if code := app.Run([]string{"run", "-o", dest, a, b}, &out, &errB); code != 0 {
		t.Fatalf("exit %d: %s", code, errB.String())
	}
	for name, want := range map[string]string{
		"a_means.csv": "0,40\n1,40\n",
		"b_means.csv": "0,20\n",
	} {
		got, err := os.ReadFile(filepath.Join(dir, "out", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
}

package cliutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPositionals(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.fastq")
	b := filepath.Join(dir, "b.fastq")
	_ = os.WriteFile(a, []byte("@r\nA\n+\nI\n"), 0o644)
	_ = os.WriteFile(b, []byte("@r\nA\n+\nI\n"), 0o644)
	got, err := ExpandPositionals([]string{filepath.Join(dir, "*.fastq"), "-", "plain.fq"})
	if err != nil || len(got) != 4 {
		t.Fatalf("expand: err=%v got=%v", err, got)
	}
	if got[2] != "-" || got[3] != "plain.fq" {
		t.Fatalf("non-glob args changed: %v", got)
	}
	if _, err := ExpandPositionals([]string{filepath.Join(dir, "*.nothing")}); err == nil {
		t.Fatalf("expected no-match error")
	}
}

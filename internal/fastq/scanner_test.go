package fastq

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, data string, start, stop int64) ([]string, error) {
	t.Helper()
	r := strings.NewReader(data)
	_, err := r.Seek(start, io.SeekStart)
	require.NoError(t, err)
	s := NewQualityScanner(r, "mem.fq", start, stop)
	var out []string
	for s.Scan() {
		out = append(out, string(s.Quality()))
	}
	return out, s.Err()
}

func TestQualityScanner_ReadsWholeRecordsUpToStop(t *testing.T) {
	data := "@r1\nACGT\n+\n!!++\n@r2\nACGT\n+\n####\n"
	got, err := scanAll(t, data, 0, int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, []string{"!!++", "####"}, got)

	// A stop inside r1 still yields the whole of r1 and nothing else.
	got, err = scanAll(t, data, 0, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"!!++"}, got)
}

func TestQualityScanner_StripsCRLF(t *testing.T) {
	data := "@r1\r\nAC\r\n+\r\nI5\r\n"
	got, err := scanAll(t, data, 0, int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, []string{"I5"}, got)
}

func TestQualityScanner_TruncatedRecordIsDropped(t *testing.T) {
	data := "@r1\nAC\n+\nII\n@r2\nAC\n"
	got, err := scanAll(t, data, 0, int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, []string{"II"}, got)
}

func TestQualityScanner_SkipsTrailingBlankLines(t *testing.T) {
	data := "@r1\nAC\n+\nII\n\n\n"
	got, err := scanAll(t, data, 0, int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, []string{"II"}, got)
}

func TestQualityScanner_BadHeader(t *testing.T) {
	data := "@r1\nAC\n+\nII\nr2\nAC\n+\nII\n"
	_, err := scanAll(t, data, 0, int64(len(data)))
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, int64(strings.Index(data, "r2\n")), fe.Offset)
	require.Contains(t, fe.Error(), "mem.fq")
}

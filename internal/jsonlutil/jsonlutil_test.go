package jsonlutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	N int `json:"n"`
}

func TestStartThenDecode(t *testing.T) {
	var b bytes.Buffer
	in, done := Start[int](&b, 2, func(enc *json.Encoder, n int) error {
		return enc.Encode(row{N: n})
	}, nil)
	for i := 0; i < 5; i++ {
		in <- i
	}
	close(in)
	require.NoError(t, <-done)

	var got []int
	require.NoError(t, Decode(&b, func(r row) error {
		got = append(got, r.N)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

type failWriter struct{ err error }

func (f failWriter) Write([]byte) (int, error) { return 0, f.err }

func TestStart_BrokenPipeSuppressed(t *testing.T) {
	in, done := Start[int](failWriter{io.ErrClosedPipe}, 1, func(enc *json.Encoder, n int) error {
		return enc.Encode(n)
	}, func(err error) bool { return errors.Is(err, io.ErrClosedPipe) })
	in <- 1
	close(in)
	assert.NoError(t, <-done)
}

func TestStart_WriteErrorReported(t *testing.T) {
	boom := errors.New("disk full")
	in, done := Start[int](failWriter{boom}, 1, func(enc *json.Encoder, n int) error {
		return enc.Encode(n)
	}, nil)
	in <- 1
	close(in)
	assert.ErrorIs(t, <-done, boom)
}

func TestDecode_Errors(t *testing.T) {
	err := Decode(strings.NewReader("{\"n\":1}\n\nnot json\n"), func(row) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	stop := errors.New("stop")
	err = Decode(strings.NewReader("{\"n\":1}\n"), func(row) error { return stop })
	assert.ErrorIs(t, err, stop)
}

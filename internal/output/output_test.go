package output

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phredmean/internal/stats"
	"phredmean/pkg/api"
)

func sample() []stats.Result {
	return []stats.Result{
		{Source: "a.fastq", Means: []float64{1, 2.5, math.NaN()}, Counts: []int64{2, 2, 0}, Records: 2},
		{Source: "b.fastq", Means: []float64{40}, Counts: []int64{1}, Records: 1},
	}
}

func TestFormatMean(t *testing.T) {
	assert.Equal(t, "1", FormatMean(1))
	assert.Equal(t, "6.5", FormatMean(6.5))
	assert.Equal(t, "0.3333333333333333", FormatMean(1.0/3))
	assert.Equal(t, "NaN", FormatMean(math.NaN()))
}

func TestWriteCSV(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteCSV(&b, sample()[0], true))
	assert.Equal(t, "a.fastq\n0,1\n1,2.5\n2,NaN\n", b.String())

	b.Reset()
	require.NoError(t, WriteCSV(&b, sample()[1], false))
	assert.Equal(t, "0,40\n", b.String())
}

func TestWriteJSON_NullForNoData(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteJSON(&b, sample()))

	var got []api.ResultV1
	require.NoError(t, json.Unmarshal(b.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a.fastq", got[0].Source)
	require.Len(t, got[0].Means, 3)
	assert.Equal(t, 2.5, *got[0].Means[1])
	assert.Nil(t, got[0].Means[2])
	assert.Contains(t, b.String(), "\n  ", "pretty printed")
}

func TestWriteParquet(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteParquet(&b, sample()))

	rows, err := parquet.Read[api.PositionV1](bytes.NewReader(b.Bytes()), int64(b.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "a.fastq", rows[0].Source)
	assert.Equal(t, 1, rows[1].Position)
	require.NotNil(t, rows[1].Mean)
	assert.Equal(t, 2.5, *rows[1].Mean)
	assert.Nil(t, rows[2].Mean)
	assert.Equal(t, int64(0), rows[2].Count)
	assert.Equal(t, "b.fastq", rows[3].Source)
}

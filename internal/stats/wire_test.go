package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phredmean/pkg/api"
)

func TestResultToAPI_NullForMissing(t *testing.T) {
	res := Finalize(Partial{Source: "a", Sum: []int64{10, 0}, Count: []int64{2, 0}, Records: 2})
	v := res.ToAPI()
	require.Len(t, v.Means, 2)
	require.NotNil(t, v.Means[0])
	assert.Equal(t, 5.0, *v.Means[0])
	assert.Nil(t, v.Means[1])

	rows := res.Positions()
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].Position)
	assert.Nil(t, rows[1].Mean)
	assert.Equal(t, int64(2), rows[0].Count)
}

func TestPartialFromAPI_Validates(t *testing.T) {
	_, err := PartialFromAPI(api.PartialV1{Source: "a", Sum: []int64{1, 2}, Count: []int64{1}})
	require.Error(t, err)

	p, err := PartialFromAPI(api.PartialV1{Source: "a", Sum: []int64{4}, Count: []int64{1}, Records: 1})
	require.NoError(t, err)
	assert.Equal(t, p.ToAPI(), api.PartialV1{Source: "a", Sum: []int64{4}, Count: []int64{1}, Records: 1})
}

package output

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"phredmean/internal/stats"
	"phredmean/pkg/api"
)

// WriteParquet writes one api.PositionV1 row per position of every result.
func WriteParquet(w io.Writer, list []stats.Result) error {
	pw := parquet.NewGenericWriter[api.PositionV1](w)
	for _, r := range list {
		if _, err := pw.Write(r.Positions()); err != nil {
			pw.Close()
			return err
		}
	}
	return pw.Close()
}

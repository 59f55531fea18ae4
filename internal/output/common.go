// Package output renders reduced quality results in the supported formats.
package output

import (
	"math"
	"strconv"
)

// Output formats.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// NoData is written for a position no record reached.
const NoData = "NaN"

// FormatMean renders a mean with the shortest exact representation.
func FormatMean(m float64) string {
	if math.IsNaN(m) {
		return NoData
	}
	return strconv.FormatFloat(m, 'f', -1, 64)
}

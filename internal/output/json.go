package output

import (
	"io"

	"phredmean/internal/jsonutil"
	"phredmean/internal/stats"
	"phredmean/pkg/api"
)

// ToAPIResults converts results to the stable wire schema (v1).
func ToAPIResults(list []stats.Result) []api.ResultV1 {
	out := make([]api.ResultV1, 0, len(list))
	for _, r := range list {
		out = append(out, r.ToAPI())
	}
	return out
}

// WriteJSON writes a single JSON array of v1 results (pretty-indented).
func WriteJSON(w io.Writer, list []stats.Result) error {
	return jsonutil.EncodePretty(w, ToAPIResults(list))
}

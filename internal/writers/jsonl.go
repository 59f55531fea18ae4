package writers

import (
	"encoding/json"
	"io"

	"phredmean/internal/jsonlutil"
	"phredmean/pkg/api"
)

// StartPositionJSONLWriter streams each position row as one JSON line (v1).
func StartPositionJSONLWriter(out io.Writer, bufSize int) (chan<- api.PositionV1, <-chan error) {
	return jsonlutil.Start[api.PositionV1](out, bufSize,
		func(enc *json.Encoder, p api.PositionV1) error {
			return enc.Encode(p)
		},
		IsBrokenPipe,
	)
}

// StartPartialJSONLWriter streams partials as JSON lines, the input of
// `phredmean combine`.
func StartPartialJSONLWriter(out io.Writer, bufSize int) (chan<- api.PartialV1, <-chan error) {
	return jsonlutil.Start[api.PartialV1](out, bufSize,
		func(enc *json.Encoder, p api.PartialV1) error {
			return enc.Encode(p)
		},
		IsBrokenPipe,
	)
}

// StartWorkItemJSONLWriter streams planned work items as JSON lines.
func StartWorkItemJSONLWriter(out io.Writer, bufSize int) (chan<- api.WorkItemV1, <-chan error) {
	return jsonlutil.Start[api.WorkItemV1](out, bufSize,
		func(enc *json.Encoder, w api.WorkItemV1) error {
			return enc.Encode(w)
		},
		IsBrokenPipe,
	)
}

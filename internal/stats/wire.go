package stats

import (
	"math"

	"phredmean/pkg/api"
)

// ToAPI converts p to its wire form.
func (p Partial) ToAPI() api.PartialV1 {
	return api.PartialV1{
		Source:  p.Source,
		Sum:     append([]int64{}, p.Sum...),
		Count:   append([]int64{}, p.Count...),
		Records: p.Records,
	}
}

// PartialFromAPI converts and validates a wire partial.
func PartialFromAPI(v api.PartialV1) (Partial, error) {
	p := Partial{
		Source:  v.Source,
		Sum:     append([]int64(nil), v.Sum...),
		Count:   append([]int64(nil), v.Count...),
		Records: v.Records,
	}
	return p, p.Validate()
}

// ToAPI converts r to its wire form; NaN means become null.
func (r Result) ToAPI() api.ResultV1 {
	out := api.ResultV1{
		Source:  r.Source,
		Records: r.Records,
		Means:   make([]*float64, len(r.Means)),
		Counts:  append([]int64{}, r.Counts...),
	}
	for i, m := range r.Means {
		if math.IsNaN(m) {
			continue
		}
		m := m
		out.Means[i] = &m
	}
	return out
}

// Positions flattens r into one row per position.
func (r Result) Positions() []api.PositionV1 {
	out := make([]api.PositionV1, len(r.Means))
	for i := range r.Means {
		out[i] = api.PositionV1{Source: r.Source, Position: i, Count: r.Counts[i]}
		if m, ok := r.Mean(i); ok {
			out[i].Mean = &m
		}
	}
	return out
}

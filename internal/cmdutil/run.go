package cmdutil

import (
	"context"

	"phredmean/internal/pipeline"
	"phredmean/internal/plan"
	"phredmean/internal/stats"
)

// RunStream submits items through coord, reduces the partials per source
// and sends each result in first-seen source order. It returns the number
// of results sent and the first error encountered.
func RunStream(
	ctx context.Context,
	coord pipeline.Coordinator,
	items []plan.WorkItem,
	send func(stats.Result) error,
) (int, error) {
	partials, err := coord.Submit(ctx, items)
	if err != nil {
		return 0, err
	}
	red := stats.NewReducer(plan.ExpectedCounts(items))
	for _, p := range partials {
		if _, err := red.Add(p); err != nil {
			return 0, err
		}
	}
	results, err := red.Results(plan.Order(items))
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range results {
		if err := send(r); err != nil {
			return total, err
		}
		total++
	}
	return total, nil
}

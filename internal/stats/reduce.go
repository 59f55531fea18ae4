package stats

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownSource is returned for a partial of a source nobody expects.
	ErrUnknownSource = errors.New("partial for unknown source")
	// ErrUnexpectedPartial is returned when a source receives more partials
	// than were planned for it.
	ErrUnexpectedPartial = errors.New("more partials than planned")
	// ErrIncomplete is returned when results are requested before every
	// planned partial arrived.
	ErrIncomplete = errors.New("sources are still missing partials")
)

// Reduce merges partials by source and finalizes them. Results are sorted by
// source path; the order of partials does not matter.
func Reduce(partials []Partial) []Result {
	merged := make(map[string]*Partial)
	for _, p := range partials {
		acc, ok := merged[p.Source]
		if !ok {
			acc = &Partial{Source: p.Source}
			merged[p.Source] = acc
		}
		acc.Merge(p)
	}

	sources := make([]string, 0, len(merged))
	for s := range merged {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	out := make([]Result, 0, len(sources))
	for _, s := range sources {
		out = append(out, Finalize(*merged[s]))
	}
	return out
}

// Reducer merges partials as they arrive and knows how many to wait for per
// source. It is not safe for concurrent use.
type Reducer struct {
	expected map[string]int
	seen     map[string]int
	merged   map[string]*Partial
}

// NewReducer expects expected[source] partials for every source.
func NewReducer(expected map[string]int) *Reducer {
	r := &Reducer{
		expected: make(map[string]int, len(expected)),
		seen:     make(map[string]int, len(expected)),
		merged:   make(map[string]*Partial, len(expected)),
	}
	for s, n := range expected {
		r.expected[s] = n
		r.merged[s] = &Partial{Source: s}
	}
	return r
}

// Add folds p in. complete reports whether p was the last partial its
// source was waiting for.
func (r *Reducer) Add(p Partial) (complete bool, err error) {
	want, ok := r.expected[p.Source]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownSource, p.Source)
	}
	if r.seen[p.Source] >= want {
		return false, fmt.Errorf("%w: %q expects %d", ErrUnexpectedPartial, p.Source, want)
	}
	if err := p.Validate(); err != nil {
		return false, err
	}
	r.merged[p.Source].Merge(p)
	r.seen[p.Source]++
	return r.seen[p.Source] == want, nil
}

// Done reports whether every source is complete.
func (r *Reducer) Done() bool {
	return len(r.Missing()) == 0
}

// Missing lists the sources still waiting for partials, sorted.
func (r *Reducer) Missing() []string {
	var out []string
	for s, want := range r.expected {
		if r.seen[s] < want {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Result finalizes one complete source.
func (r *Reducer) Result(source string) (Result, error) {
	want, ok := r.expected[source]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if r.seen[source] < want {
		return Result{}, fmt.Errorf("%w: %s", ErrIncomplete, source)
	}
	return Finalize(*r.merged[source]), nil
}

// Results finalizes every source in the given order. Sources not listed in
// order follow, sorted by path.
func (r *Reducer) Results(order []string) ([]Result, error) {
	if missing := r.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	listed := make(map[string]struct{}, len(order))
	out := make([]Result, 0, len(r.expected))
	for _, s := range order {
		if _, dup := listed[s]; dup {
			continue
		}
		listed[s] = struct{}{}
		res, err := r.Result(s)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	var rest []string
	for s := range r.expected {
		if _, ok := listed[s]; !ok {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	for _, s := range rest {
		out = append(out, Finalize(*r.merged[s]))
	}
	return out, nil
}

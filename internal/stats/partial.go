// Package stats folds quality lines into per-position partial sums and
// reduces partials into per-position mean qualities.
package stats

import (
	"fmt"
	"math"

	"phredmean/internal/fastq"
)

// Partial is the per-position sum and count of quality scores for the
// records of one or more chunks of Source. Vectors are as long as the longest
// record seen; Records is the number of records folded in.
type Partial struct {
	Source  string
	Sum     []int64
	Count   []int64
	Records int64
}

// NewPartial returns an empty partial for source.
func NewPartial(source string) Partial {
	return Partial{Source: source}
}

// Add folds one quality line (without its line terminator) into p. A byte
// outside the printable Phred+33 range leaves p untouched and returns a
// *fastq.FormatError with an unknown offset.
func (p *Partial) Add(qual []byte) error {
	for i, c := range qual {
		if c < fastq.PhredOffset || c > fastq.PhredOffset+fastq.MaxPhred {
			return &fastq.FormatError{
				Path:   p.Source,
				Offset: -1,
				Msg:    fmt.Sprintf("quality byte %#x at position %d outside Phred+33 range", c, i),
			}
		}
	}
	p.grow(len(qual))
	for i, c := range qual {
		p.Sum[i] += int64(c - fastq.PhredOffset)
		p.Count[i]++
	}
	p.Records++
	return nil
}

// Merge adds other into p position by position. The shorter side is padded
// with zero contribution; nothing is ever truncated.
func (p *Partial) Merge(other Partial) {
	p.grow(len(other.Sum))
	for i := range other.Sum {
		p.Sum[i] += other.Sum[i]
		p.Count[i] += other.Count[i]
	}
	p.Records += other.Records
}

// Clone returns a deep copy of p.
func (p Partial) Clone() Partial {
	return Partial{
		Source:  p.Source,
		Sum:     append([]int64(nil), p.Sum...),
		Count:   append([]int64(nil), p.Count...),
		Records: p.Records,
	}
}

// Len is the number of positions covered.
func (p Partial) Len() int { return len(p.Sum) }

// Validate checks the shape of a partial received from elsewhere.
func (p Partial) Validate() error {
	if len(p.Sum) != len(p.Count) {
		return fmt.Errorf("partial for %q: sum has %d positions, count has %d", p.Source, len(p.Sum), len(p.Count))
	}
	for i, c := range p.Count {
		if c < 0 || c > p.Records {
			return fmt.Errorf("partial for %q: count %d at position %d out of range [0,%d]", p.Source, c, i, p.Records)
		}
	}
	return nil
}

func (p *Partial) grow(n int) {
	if n <= len(p.Sum) {
		return
	}
	p.Sum = append(p.Sum, make([]int64, n-len(p.Sum))...)
	p.Count = append(p.Count, make([]int64, n-len(p.Count))...)
}

// Result is the per-position mean quality of one source.
type Result struct {
	Source  string
	Means   []float64
	Counts  []int64
	Records int64
}

// Mean returns the mean at position i. ok is false when no record reached
// position i.
func (r Result) Mean(i int) (mean float64, ok bool) {
	if i < 0 || i >= len(r.Means) || r.Counts[i] == 0 {
		return math.NaN(), false
	}
	return r.Means[i], true
}

// Finalize turns a fully merged partial into means. Positions without data
// are NaN.
func Finalize(p Partial) Result {
	res := Result{
		Source:  p.Source,
		Means:   make([]float64, len(p.Sum)),
		Counts:  append([]int64(nil), p.Count...),
		Records: p.Records,
	}
	for i := range p.Sum {
		if i >= len(p.Count) || p.Count[i] == 0 {
			res.Means[i] = math.NaN()
			continue
		}
		res.Means[i] = float64(p.Sum[i]) / float64(p.Count[i])
	}
	return res
}

// Package plan discovers input files and cuts them into byte-range work items.
package plan

import (
	"errors"
	"sort"
)

// DefaultMinChunkBytes is the smallest chunk the CLI plans by default.
const DefaultMinChunkBytes = 4096

// ErrInvalidChunkCount is returned when fewer than one chunk is requested.
var ErrInvalidChunkCount = errors.New("chunk count must be at least 1")

// Plan allocates chunkCount chunks over sources and returns every source's
// contiguous ranges, sources in input order, chunks in offset order.
// Chunks smaller than minChunkBytes are avoided by planning fewer of them.
func Plan(sources []Source, chunkCount int, minChunkBytes int64) ([]WorkItem, error) {
	if chunkCount < 1 {
		return nil, ErrInvalidChunkCount
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if minChunkBytes < 1 {
		minChunkBytes = 1
	}
	for _, s := range sources {
		if s.Size <= 0 {
			return nil, &SourceError{Path: s.Path, Err: ErrEmptySource}
		}
	}

	counts := Allocate(sources, chunkCount)
	items := make([]WorkItem, 0, chunkCount)
	for i, s := range sources {
		items = append(items, Split(s, counts[i], minChunkBytes)...)
	}
	return items, nil
}

// Allocate decides how many chunks each source gets.
//
//   - a single source gets all of them;
//   - with at least as many sources as chunks, every source gets one;
//   - otherwise every source gets one and the rest are shared in proportion
//     to size (largest remainder): a source earns one extra chunk per quota
//     bytes, quota = total bytes / (1 + unallocated chunks), and chunks still
//     left go to the largest fractional remainders, ties in input order.
//
// The proportional step never hands out more than chunkCount chunks.
func Allocate(sources []Source, chunkCount int) []int {
	counts := make([]int, len(sources))
	switch {
	case len(sources) == 0:
		return counts
	case len(sources) == 1:
		counts[0] = chunkCount
		return counts
	case len(sources) >= chunkCount:
		for i := range counts {
			counts[i] = 1
		}
		return counts
	}

	unallocated := chunkCount - len(sources)
	var total int64
	for i, s := range sources {
		counts[i] = 1
		total += s.Size
	}
	quota := float64(total) / float64(1+unallocated)

	fractions := make([]float64, len(sources))
	for i, s := range sources {
		f := float64(s.Size) / quota
		extra := min(int(f), unallocated)
		counts[i] += extra
		unallocated -= extra
		fractions[i] = f - float64(extra)
	}
	if unallocated <= 0 {
		return counts
	}

	order := make([]int, len(sources))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fractions[order[a]] > fractions[order[b]] })
	for _, i := range order[:min(unallocated, len(order))] {
		counts[i]++
	}
	return counts
}

// Split cuts src into n contiguous ranges covering [0, Size). The first
// Size%n ranges are one byte longer. If that would make chunks smaller than
// minChunkBytes, n shrinks to Size/minChunkBytes (at least 1).
func Split(src Source, n int, minChunkBytes int64) []WorkItem {
	if n < 1 {
		n = 1
	}
	if minChunkBytes < 1 {
		minChunkBytes = 1
	}
	q, r := src.Size/int64(n), src.Size%int64(n)
	if q < minChunkBytes {
		n = int(max(1, src.Size/minChunkBytes))
		q, r = src.Size/int64(n), src.Size%int64(n)
	}

	items := make([]WorkItem, n)
	for i := range items {
		k := int64(i)
		items[i] = WorkItem{
			Source: src.Path,
			Size:   src.Size,
			Index:  i,
			Start:  k*q + min(k, r),
			Stop:   (k+1)*q + min(k+1, r),
		}
	}
	return items
}

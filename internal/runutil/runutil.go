// Package runutil resolves the run-shape knobs shared by the commands.
package runutil

import (
	"fmt"
	"runtime"
)

// EffectiveWorkers returns n, or the CPU count when n <= 0.
func EffectiveWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// ValidateChunking decides the chunk count, returning (chunks, warnings).
// Rules:
//   - chunks <= 0 means one chunk per worker
//   - fewer chunks than sources still yields one chunk per source
func ValidateChunking(chunks, workers, sources int) (int, []string) {
	var warns []string
	if chunks <= 0 {
		chunks = EffectiveWorkers(workers)
	}
	if sources > chunks {
		warns = append(warns, fmt.Sprintf("warning: %d chunks for %d sources; using one chunk per source", chunks, sources))
		chunks = sources
	}
	return chunks, warns
}

package engine

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phredmean/internal/fastq"
	"phredmean/internal/plan"
	"phredmean/internal/stats"
)

const twoRecords = "@r1\nACGT\n+\n!!++\n@r2\nACGT\n+\n####\n"

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.fq")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func item(path string, size, start, stop int64) plan.WorkItem {
	return plan.WorkItem{Source: path, Size: size, Start: start, Stop: stop}
}

func processAll(t *testing.T, eng *Engine, items []plan.WorkItem) stats.Result {
	t.Helper()
	var parts []stats.Partial
	for _, it := range items {
		p, err := eng.Process(context.Background(), it)
		require.NoError(t, err, "item %s", it)
		parts = append(parts, p)
	}
	res := stats.Reduce(parts)
	require.Len(t, res, 1)
	return res[0]
}

func TestProcess_SingleChunk(t *testing.T) {
	path := writeFile(t, twoRecords)
	size := int64(len(twoRecords))

	res := processAll(t, New(Config{}), []plan.WorkItem{item(path, size, 0, size)})
	assert.Equal(t, []float64{1, 1, 6, 6}, res.Means)
	assert.Equal(t, int64(2), res.Records)
}

func TestProcess_TwoChunksAtEveryOffset(t *testing.T) {
	path := writeFile(t, twoRecords)
	size := int64(len(twoRecords))
	eng := New(Config{})

	for k := int64(1); k < size; k++ {
		res := processAll(t, eng, []plan.WorkItem{item(path, size, 0, k), item(path, size, k, size)})
		assert.Equal(t, []float64{1, 1, 6, 6}, res.Means, "split at %d", k)
		assert.Equal(t, int64(2), res.Records, "split at %d", k)
	}
}

// randomFASTQ builds records whose quality lines often start with '@'.
func randomFASTQ(rng *rand.Rand, n int) string {
	var b strings.Builder
	for i := range n {
		l := 1 + rng.Intn(12)
		fmt.Fprintf(&b, "@read%d extra\n", i)
		for range l {
			b.WriteByte("ACGTN"[rng.Intn(5)])
		}
		b.WriteString("\n+\n")
		for j := range l {
			c := byte(33 + rng.Intn(94))
			if j == 0 && rng.Intn(3) == 0 {
				c = '@'
			}
			b.WriteByte(c)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func TestProcess_PartitionInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	body := randomFASTQ(rng, 200)
	path := writeFile(t, body)
	src := plan.Source{Path: path, Size: int64(len(body))}
	eng := New(Config{})

	want := processAll(t, eng, plan.Split(src, 1, 1))
	require.Equal(t, int64(200), want.Records)

	for _, n := range []int{2, 3, 7, 16, 64, 500} {
		got := processAll(t, eng, plan.Split(src, n, 1))
		assert.Equal(t, want.Counts, got.Counts, "n=%d", n)
		assert.Equal(t, want.Means, got.Means, "n=%d", n)
		assert.Equal(t, want.Records, got.Records, "n=%d", n)
	}

	// Random cut points, not just even splits.
	for range 20 {
		cuts := []int64{0, src.Size}
		for range 1 + rng.Intn(10) {
			cuts = append(cuts, rng.Int63n(src.Size))
		}
		items := cutsToItems(path, src.Size, cuts)
		got := processAll(t, eng, items)
		assert.Equal(t, want.Means, got.Means, "cuts %v", cuts)
	}
}

func cutsToItems(path string, size int64, cuts []int64) []plan.WorkItem {
	seen := map[int64]bool{}
	var uniq []int64
	for _, c := range cuts {
		if !seen[c] {
			seen[c] = true
			uniq = append(uniq, c)
		}
	}
	for i := 1; i < len(uniq); i++ {
		for j := i; j > 0 && uniq[j] < uniq[j-1]; j-- {
			uniq[j], uniq[j-1] = uniq[j-1], uniq[j]
		}
	}
	var items []plan.WorkItem
	for i := 0; i+1 < len(uniq); i++ {
		items = append(items, item(path, size, uniq[i], uniq[i+1]))
	}
	return items
}

func TestProcess_RetryIsIdentical(t *testing.T) {
	body := randomFASTQ(rand.New(rand.NewSource(1)), 50)
	path := writeFile(t, body)
	it := item(path, int64(len(body)), 13, int64(len(body))/2)
	eng := New(Config{})

	a, err := eng.Process(context.Background(), it)
	require.NoError(t, err)
	b, err := eng.Process(context.Background(), it)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProcess_EmptyChunk(t *testing.T) {
	path := writeFile(t, twoRecords)
	// [1,5) lies inside r1's header and sequence; no record starts there.
	p, err := New(Config{}).Process(context.Background(), item(path, int64(len(twoRecords)), 1, 5))
	require.NoError(t, err)
	assert.Zero(t, p.Records)
	assert.Empty(t, p.Sum)
}

func TestProcess_Errors(t *testing.T) {
	eng := New(Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writeFile(t, twoRecords)
	_, err := eng.Process(ctx, item(path, int64(len(twoRecords)), 0, int64(len(twoRecords))))
	require.ErrorIs(t, err, context.Canceled)

	_, err = eng.Process(context.Background(), item(filepath.Join(t.TempDir(), "nope.fq"), 0, 0, 10))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = eng.Process(context.Background(), item(path, 999, 0, 10))
	require.ErrorIs(t, err, ErrSourceChanged)

	bad := "@r1\nAC\n+\nI\x7f\n"
	badPath := writeFile(t, bad)
	_, err = eng.Process(context.Background(), item(badPath, int64(len(bad)), 0, int64(len(bad))))
	var fe *fastq.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, badPath, fe.Path)
	assert.Equal(t, int64(0), fe.Offset)
}

func TestProcess_CancelMidway(t *testing.T) {
	body := randomFASTQ(rand.New(rand.NewSource(3)), 100)
	path := writeFile(t, body)
	eng := New(Config{CheckEvery: 1})

	ctx, cancel := context.WithCancel(context.Background())
	handlers := map[Op]Handler{
		OpComputeQualityStats: func(c context.Context, it plan.WorkItem) (stats.Partial, error) {
			cancel()
			return eng.Process(c, it)
		},
	}
	_, err := Dispatch(ctx, handlers, Task{Op: OpComputeQualityStats, Item: item(path, int64(len(body)), 0, int64(len(body)))})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessStream(t *testing.T) {
	path := writeFile(t, twoRecords)
	p, err := New(Config{}).ProcessStream(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 6, 6}, stats.Finalize(p).Means)
}

func TestDispatch(t *testing.T) {
	path := writeFile(t, twoRecords)
	eng := New(Config{})
	size := int64(len(twoRecords))

	p, err := Dispatch(context.Background(), eng.Handlers(), Task{Op: OpComputeQualityStats, Item: item(path, size, 0, size)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Records)

	_, err = Dispatch(context.Background(), eng.Handlers(), Task{Op: "rm -rf", Item: item(path, size, 0, size)})
	require.ErrorIs(t, err, ErrUnknownOp)

	op, err := ParseOp("compute_quality_stats")
	require.NoError(t, err)
	assert.Equal(t, OpComputeQualityStats, op)
	_, err = ParseOp("eval")
	require.ErrorIs(t, err, ErrUnknownOp)
}

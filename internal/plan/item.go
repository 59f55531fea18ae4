package plan

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// WorkItem is the half-open byte range [Start, Stop) of one source handed to
// one worker. Size is the source size when the plan was made.
type WorkItem struct {
	Source string
	Size   int64
	Index  int
	Start  int64
	Stop   int64
}

// Len is the number of bytes in the range.
func (w WorkItem) Len() int64 { return w.Stop - w.Start }

// Key identifies the item by content: the same source, size and range always
// hash to the same key, whichever worker or attempt produced it.
func (w WorkItem) Key() uint64 {
	var buf [24]byte
	d := xxhash.New()
	_, _ = d.WriteString(w.Source)
	binary.BigEndian.PutUint64(buf[0:8], uint64(w.Size))
	binary.BigEndian.PutUint64(buf[8:16], uint64(w.Start))
	binary.BigEndian.PutUint64(buf[16:24], uint64(w.Stop))
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

func (w WorkItem) String() string {
	return fmt.Sprintf("%s[%d:%d)#%d", w.Source, w.Start, w.Stop, w.Index)
}

// ExpectedCounts returns the number of work items per source.
func ExpectedCounts(items []WorkItem) map[string]int {
	out := make(map[string]int)
	for _, it := range items {
		out[it.Source]++
	}
	return out
}

// Order returns the distinct sources of items in first-seen order.
func Order(items []WorkItem) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, it := range items {
		if _, ok := seen[it.Source]; ok {
			continue
		}
		seen[it.Source] = struct{}{}
		out = append(out, it.Source)
	}
	return out
}

package api

// WorkItemV1 is one byte range [start, stop) of a FASTQ file.
// Keep fields, names, and types stable. Add new fields only with ",omitempty".
type WorkItemV1 struct {
	Source string `json:"source"`
	Size   int64  `json:"size"`
	Index  int    `json:"index"`
	Start  int64  `json:"start"`
	Stop   int64  `json:"stop"`
}

// TaskV1 asks a worker to run Op on Item. Op must name a registered
// operation; workers reject anything else.
type TaskV1 struct {
	ID      string     `json:"id"`
	Op      string     `json:"op"`
	Item    WorkItemV1 `json:"item"`
	Attempt int        `json:"attempt,omitempty"`
}

// PartialV1 is the per-position sum/count of quality scores for part of a
// source.
type PartialV1 struct {
	Source  string  `json:"source"`
	Sum     []int64 `json:"sum"`
	Count   []int64 `json:"count"`
	Records int64   `json:"records"`
}

// ChunkResultV1 answers one TaskV1. Exactly one of Partial and Error is set.
// Permanent marks an error that would recur on every attempt.
type ChunkResultV1 struct {
	TaskID    string     `json:"task_id"`
	Item      WorkItemV1 `json:"item"`
	Attempt   int        `json:"attempt,omitempty"`
	Partial   *PartialV1 `json:"partial,omitempty"`
	Error     string     `json:"error,omitempty"`
	Permanent bool       `json:"permanent,omitempty"`
	Worker    string     `json:"worker,omitempty"`
}

// ResultV1 is the final per-position mean quality of one source. A null mean
// marks a position no record reached.
type ResultV1 struct {
	Source  string     `json:"source"`
	Records int64      `json:"records"`
	Means   []*float64 `json:"means"`
	Counts  []int64    `json:"counts"`
}

// PositionV1 is one row of the flat (jsonl/parquet) result layout.
type PositionV1 struct {
	Source   string   `json:"source" parquet:"source,dict"`
	Position int      `json:"position" parquet:"position"`
	Mean     *float64 `json:"mean" parquet:"mean,optional"`
	Count    int64    `json:"count" parquet:"count"`
}

// Package writers turns reduced results into serialized outputs.
//
// Design:
//   - Writers own all presentation knowledge (csv, JSON, JSONL, parquet).
//   - Engine stays domain-only; pipeline stays orchestration-only.
//   - JSON, JSONL and parquet go through pkg/api (v1) for a stable wire format.
package writers

// Package pipeline runs planned work items through a Processor and gathers
// their partials. Coordinators differ in how work reaches the processor:
//
//   - Pool: a bounded set of local goroutines
//   - ScatterGather: fixed ranks working in lock-step rounds
//   - QueueCoordinator + Worker: tasks and results over a queue.Queue, so
//     workers may live in other processes
//
// Processing is idempotent, so every coordinator retries failed items and
// hands each item's partial to the caller exactly once.
package pipeline

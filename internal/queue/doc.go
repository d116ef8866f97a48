// Package queue provides per-model admission control and request routing
// for inference calls. It is structured into small files by concern:
//
//   - manager.go: core Manager type, Submit/Cancel/Sweep/Status/Close.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - queue.go: per-model Queue, consumer loop, task lifecycle.
//   - aggregator.go: chunk accumulation and the outbound event protocol.
//   - events.go: EventSink interface and error payload shaping.
//   - eventsink_memory.go: in-memory sink for tests.
//   - errors.go: error types and helpers (IsQueueFull, IsQueueClosed).
//   - metrics.go: Prometheus collectors.
//
// One Queue exists per model id, created lazily on first submission and
// reclaimed by Sweep once idle. Each queue dequeues in arrival order and
// runs up to MaxConcurrentRequests tasks at a time. Every submitted
// request produces zero or more streaming events followed by exactly one
// terminal event (completed, error or cancelled) on the configured sink.
//
// External packages should treat this package as the coordination layer
// and use public methods only (New/NewWithConfig, Submit, Cancel, Sweep,
// Status, Close). Internal types are subject to change.
package queue

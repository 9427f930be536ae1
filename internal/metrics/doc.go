// Package metrics provides lock-free counters and latency histograms for the
// authentication engine.
//
// Counters live in cache-line-padded uint64 slots and are incremented with
// sync/atomic. Histograms use 8 fixed buckets (<=5ms ... +Inf). The write
// path does not allocate.
//
// Export (OpenTelemetry) lives in metrics/export and reads Snapshot values.
package metrics

// Package prometheus renders authcore metrics in the Prometheus text format.
//
// [NewPrometheusExporter] wraps an [authcore.Engine] and exposes an
// [http.Handler]. Counters are named authcore_*_total; the latency
// histograms are authcore_*_latency_seconds and appear only when latency
// histograms are enabled.
//
// # What this package must NOT do
//
//   - Register anything in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus

// Package prometheus exposes jwtsession engine metrics as a
// client_golang [prometheus.Collector].
//
// [NewCollector] reads [jwtsession.Engine.MetricsSnapshot] on every scrape.
// Counters are named jwtsession_*_total; verification latency is the
// histogram jwtsession_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register itself in the default registry. Callers register the
//     collector where they want it.
//   - Mutate engine state.
package prometheus

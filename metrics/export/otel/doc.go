// Package otel publishes jwtsession engine metrics through an
// OpenTelemetry [metric.Meter].
//
// Each counter becomes an Int64ObservableCounter. The latency histogram is
// published as one cumulative Int64ObservableGauge per bucket plus a count
// gauge. A single callback reads the engine snapshot per collection.
//
// Callers own the MeterProvider.
package otel

// Package otel binds mtAuth counters to OpenTelemetry observable instruments.
//
// Each counter becomes an Int64ObservableCounter and each latency bucket an
// Int64ObservableGauge. Callers own the MeterProvider and pass a Meter.
package otel

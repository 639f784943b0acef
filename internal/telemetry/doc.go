// Package telemetry provides toast.TelemetrySink implementations: a
// structured log sink, an eventbus publisher, Prometheus metrics and a
// fan-out combinator.
package telemetry

// Package telemetry turns runtime events into metrics.
//
// Two observers count tap events by kind and resource:
//   - PrometheusObserver registers a tap_events_total counter vector
//   - OTelObserver records the same counter through an OpenTelemetry meter
//
// Both are plain tap.Observer values and can be combined with other
// observers via tap.MultiObserver. Neither blocks or fails the runtime.
package telemetry

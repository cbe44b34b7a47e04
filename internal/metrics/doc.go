// Package metrics exposes the demo's operational counters and gauges at
// /metrics in Prometheus text exposition format, built directly from
// client_model metric families and encoded with expfmt.
package metrics

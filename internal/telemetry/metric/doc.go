// Package metric provides Prometheus metrics for aerie-cli.
//
//   - prometheus.go: registry, host request and session counters
//   - collector.go: gauges sampled from the local stores
//
// A CLI invocation is short lived, so metrics are not served over HTTP.
// When a metrics file is configured the registry is written once at exit
// in the text exposition format.
package metric

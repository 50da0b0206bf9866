// Package metric provides Prometheus metrics for wasmsnap.
//
//   - prometheus.go: the Registry of snapshot metrics, HTTP handler and
//     textfile export
//   - collector.go: a collector reporting artifact counts and sizes of a
//     storage.Store at scrape time
//
// All Registry methods are safe on a nil *Registry, so instrumented code
// does not need to check whether metrics are enabled.
package metric

// Package observability groups the logging, metrics and tracing helpers used
// by the disruption worker.
//
// Subpackages:
//   - logging: slog construction and context propagation
//   - metrics: Prometheus metrics for scraping, publishing and the store
//   - tracing: OpenTelemetry spans and a tracing HTTP transport
package observability

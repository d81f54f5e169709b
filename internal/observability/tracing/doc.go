// Package tracing provides OpenTelemetry spans for the disruption pipeline.
//
// Spans are created through the global provider, so nothing is exported
// unless the binary installs an SDK provider. Outbound HTTP calls made
// through Transport become client spans carrying W3C trace context.
//
//	ctx, span := tracing.StartSpan(ctx, "monitor.RunCycle")
//	defer span.End()
package tracing

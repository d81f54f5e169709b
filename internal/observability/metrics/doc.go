// Package metrics provides the Prometheus metrics of the disruption pipeline.
//
// Metrics are registered with the default registry through promauto and
// exposed on the worker's /metrics endpoint:
//   - scrape metrics (page fetches, extracted/new/duplicate disruptions)
//   - publish metrics (outcomes, attempts, condensed posts, enrichment)
//   - store metrics (stored and posted counts, operation latency)
//
// Example usage:
//
//	start := time.Now()
//	html, err := fetcher.Fetch(ctx, pageURL)
//	metrics.RecordPageFetch(err == nil, time.Since(start))
package metrics

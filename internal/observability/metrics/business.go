package metrics

import "time"

// RecordPageFetch records one listing fetch and its duration.
func RecordPageFetch(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	PageFetchTotal.WithLabelValues(result).Inc()
	PageFetchDuration.Observe(duration.Seconds())
}

// RecordScrape records the breakdown of one cycle's extraction.
func RecordScrape(scraped, fresh, duplicates int) {
	DisruptionsScrapedTotal.Add(float64(scraped))
	DisruptionsNewTotal.Add(float64(fresh))
	DisruptionsDuplicateTotal.Add(float64(duplicates))
}

// RecordListMarkerMissing records a page that lacked the notification list.
func RecordListMarkerMissing() {
	ListMarkerMissingTotal.Inc()
}

// RecordPublish records the outcome of a publish operation.
// Outcome is the terminal state name, e.g. "succeeded" or "rate_limited".
func RecordPublish(outcome string, attempts int) {
	PostsTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		PublishAttempts.Observe(float64(attempts))
	}
}

// RecordCondensed records a post shortened by method.
func RecordCondensed(method string) {
	PostsCondensedTotal.WithLabelValues(method).Inc()
}

// RecordEnrichment records a link card, image search or thumbnail lookup.
func RecordEnrichment(kind string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	EnrichmentTotal.WithLabelValues(kind, result).Inc()
}

// UpdateStoredDisruptions sets the store gauges.
func UpdateStoredDisruptions(total, posted int64) {
	StoredDisruptions.WithLabelValues("total").Set(float64(total))
	StoredDisruptions.WithLabelValues("posted").Set(float64(posted))
}

// RecordStoreOperation records the duration of a dedup store call.
func RecordStoreOperation(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

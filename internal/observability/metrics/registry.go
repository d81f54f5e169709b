// Package metrics provides centralized Prometheus metrics for the disruption pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scrape metrics track the disruption listing fetch and extraction
var (
	// PageFetchTotal counts listing fetches by result
	PageFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natrail_page_fetch_total",
			Help: "Total number of disruption page fetches",
		},
		[]string{"result"}, // result: success, failure
	)

	// PageFetchDuration measures the listing fetch including retries
	PageFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "natrail_page_fetch_duration_seconds",
			Help:    "Time taken to fetch the disruption page",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// DisruptionsScrapedTotal counts records extracted from the page
	DisruptionsScrapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "natrail_disruptions_scraped_total",
			Help: "Total number of disruptions extracted from the page",
		},
	)

	// DisruptionsNewTotal counts records not previously seen
	DisruptionsNewTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "natrail_disruptions_new_total",
			Help: "Total number of newly seen disruptions",
		},
	)

	// DisruptionsDuplicateTotal counts records already in the store
	DisruptionsDuplicateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "natrail_disruptions_duplicate_total",
			Help: "Total number of scraped disruptions already seen",
		},
	)

	// ListMarkerMissingTotal counts pages without the notification list.
	// A steady increase usually means the page markup changed.
	ListMarkerMissingTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "natrail_list_marker_missing_total",
			Help: "Total number of fetched pages without the disruption list marker",
		},
	)
)

// Publish metrics track posting to the social network
var (
	// PostsTotal counts publish operations by terminal state
	PostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natrail_posts_total",
			Help: "Total number of publish operations by outcome",
		},
		[]string{"outcome"}, // outcome: succeeded, rate_limited, failed
	)

	// PublishAttempts observes attempts spent per publish operation
	PublishAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "natrail_publish_attempts",
			Help:    "Number of send attempts per publish operation",
			Buckets: []float64{1, 2, 3, 5, 10},
		},
	)

	// PostsCondensedTotal counts posts shortened to fit, by method
	PostsCondensedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natrail_posts_condensed_total",
			Help: "Total number of post texts shortened to fit the limit",
		},
		[]string{"method"}, // method: truncate, claude, openai
	)

	// EnrichmentTotal counts optional post enrichment lookups
	EnrichmentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natrail_enrichment_total",
			Help: "Total number of link card and image lookups",
		},
		[]string{"kind", "result"}, // kind: link_card, image_search, thumbnail
	)
)

// Store metrics track the dedup store
var (
	// StoredDisruptions reports the store contents after each cycle
	StoredDisruptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "natrail_stored_disruptions",
			Help: "Number of disruptions in the dedup store",
		},
		[]string{"state"}, // state: total, posted
	)

	// DBQueryDuration measures store operation duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "natrail_store_operation_duration_seconds",
			Help:    "Dedup store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)
)

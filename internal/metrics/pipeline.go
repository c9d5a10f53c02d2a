package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ranker, ingestion and indexing metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of ranked searches",
		},
		[]string{"status"}, // "ok" / "error"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Ranked search duration in seconds, embedding included",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	SearchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Nearest-neighbour candidates returned by the index per search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Results returned per search after thresholding",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)

	IngestArticlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_articles_total",
			Help:      "Articles processed by the scraper",
		},
		[]string{"status"}, // "ok" / "fetch_error" / "parse_error"
	)

	IndexUpsertedVectorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_upserted_vectors_total",
			Help:      "Vectors written to the index",
		},
	)

	IndexFailedBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_failed_batches_total",
			Help:      "Upsert batches rejected by the index",
		},
	)

	ConsumerMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_messages_total",
			Help:      "Article stream messages handled by the consumer",
		},
		[]string{"status"}, // "stored" / "dlq"
	)
)

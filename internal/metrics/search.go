package metrics

import "github.com/prometheus/client_golang/prometheus"

// Corpus and search session metrics.
var (
	CorpusRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesearch",
			Name:      "corpus_requests_total",
			Help:      "Total number of corpus operations",
		},
		[]string{"op", "status"},
	)

	CorpusRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notesearch",
			Name:      "corpus_request_duration_seconds",
			Help:      "Corpus operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"op"},
	)

	FetchMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notesearch",
			Name:      "fetch_matches",
			Help:      "Number of notes returned per fetch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	SearchSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notesearch",
			Name:      "search_sessions_active",
			Help:      "Number of open search sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(CorpusRequestsTotal, CorpusRequestDuration, FetchMatches, SearchSessionsActive)
}

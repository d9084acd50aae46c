package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Records processed by scheduled analytical passes, by outcome (updated|error)
	BatchRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_batch_records_total",
			Help: "Records processed by analytical batch passes.",
		},
		[]string{"component", "outcome"},
	)

	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intel_batch_duration_seconds",
			Help:    "Duration of analytical batch passes.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"component"},
	)

	ConversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_conversions_total",
			Help: "Conversion forwarding transitions by platform and status.",
		},
		[]string{"platform", "status"},
	)

	AnalyticsRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intel_analytics_request_latency_seconds",
			Help:    "Latency of analytics API requests by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	TrackedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_tracked_events_total",
			Help: "Events accepted at the ingestion boundary.",
		},
		[]string{"event_type"},
	)
)

func Init() {
	prometheus.MustRegister(
		BatchRecordsTotal,
		BatchDuration,
		ConversionsTotal,
		AnalyticsRequestLatency,
		TrackedEventsTotal,
	)
}

// ObserveBatch records the outcome counts of one pass.
func ObserveBatch(component string, updated, errors int) {
	BatchRecordsTotal.WithLabelValues(component, "updated").Add(float64(updated))
	BatchRecordsTotal.WithLabelValues(component, "error").Add(float64(errors))
}

// Package metrics exposes the core's Prometheus collectors. Collectors are
// registered once on the default registry; callers record through the
// package-level helpers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	windowsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revcore",
		Name:      "revenue_windows_finalized_total",
		Help:      "Finalized revenue windows by payment type and outcome status.",
	}, []string{"payment_type", "status"})

	centsAllocated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revcore",
		Name:      "cents_allocated_total",
		Help:      "Creator payout cents written to the ledger.",
	}, []string{"payment_type"})

	centsUnallocated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revcore",
		Name:      "cents_unallocated_total",
		Help:      "Pool cents retained by the platform after caps and exclusions.",
	}, []string{"payment_type"})

	eisScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "revcore",
		Name:      "eis_score",
		Help:      "Distribution of computed Engagement Integrity Scores.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	videosScored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "revcore",
		Name:      "videos_scored_total",
		Help:      "Video windows scored by the aggregate writer.",
	})

	storageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revcore",
		Name:      "storage_retries_total",
		Help:      "Retries of storage operations after transient errors.",
	}, []string{"op"})
)

// WindowFinalized counts one finalized revenue window.
func WindowFinalized(paymentType, status string) {
	windowsFinalized.WithLabelValues(paymentType, status).Inc()
}

// CentsAllocated adds creator payout cents for a finalized window.
func CentsAllocated(paymentType string, cents int64) {
	centsAllocated.WithLabelValues(paymentType).Add(float64(cents))
}

// CentsUnallocated adds retained pool cents for a finalized window.
func CentsUnallocated(paymentType string, cents int64) {
	centsUnallocated.WithLabelValues(paymentType).Add(float64(cents))
}

// ObserveEIS records one computed score.
func ObserveEIS(score float64) {
	eisScores.Observe(score)
	videosScored.Inc()
}

// StorageRetry counts one retry of the named storage operation.
func StorageRetry(op string) {
	storageRetries.WithLabelValues(op).Inc()
}

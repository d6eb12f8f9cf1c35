// Package metrics exposes prometheus instrumentation for the review
// and settlement pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reviewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bountyhub",
			Name:      "review_decisions_total",
			Help:      "Review decisions recorded, by outcome.",
		},
		[]string{"decision"},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bountyhub",
			Name:      "settlements_total",
			Help:      "Settlement attempts, by result.",
		},
		[]string{"result"},
	)

	verifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bountyhub",
			Name:      "chain_verify_duration_seconds",
			Help:      "Latency of on-chain settlement verification.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// ReviewDecision counts one recorded review decision.
func ReviewDecision(decision string) {
	reviewDecisions.WithLabelValues(decision).Inc()
}

// SettlementResult counts one settlement attempt result.
func SettlementResult(result string) {
	settlements.WithLabelValues(result).Inc()
}

// ObserveVerifyDuration records one verification round-trip.
func ObserveVerifyDuration(d time.Duration) {
	verifyDuration.Observe(d.Seconds())
}

// Package metrics exposes Prometheus collectors for the fulfillment pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	creditBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dreamcolor",
			Subsystem: "ledger",
			Name:      "credit_balance",
			Help:      "Current credit balance.",
		},
	)

	creditsSpent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dreamcolor",
			Subsystem: "ledger",
			Name:      "credits_spent_total",
			Help:      "Credits deducted, by reason.",
		},
		[]string{"reason"},
	)

	purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dreamcolor",
			Subsystem: "ledger",
			Name:      "purchases_total",
			Help:      "Credit packs purchased.",
		},
		[]string{"pack"},
	)

	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dreamcolor",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Generation runs by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dreamcolor",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of generation runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
		},
		[]string{"kind"},
	)

	scenes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dreamcolor",
			Subsystem: "pipeline",
			Name:      "scenes_total",
			Help:      "Illustrated scenes by result.",
		},
		[]string{"result"},
	)

	exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dreamcolor",
			Subsystem: "document",
			Name:      "exports_total",
			Help:      "Document exports by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		creditBalance,
		creditsSpent,
		purchases,
		runs,
		runDuration,
		scenes,
		exports,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetCredits records the current balance.
func SetCredits(n int) { creditBalance.Set(float64(n)) }

// RecordSpend counts credits deducted for reason ("book", "regenerate").
func RecordSpend(reason string, n int) {
	if n <= 0 {
		return
	}
	creditsSpent.WithLabelValues(reason).Add(float64(n))
}

// RecordPurchase counts a purchased pack.
func RecordPurchase(pack string) { purchases.WithLabelValues(pack).Inc() }

// RecordRun records a finished run. kind is "paid" or "free".
func RecordRun(kind, outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	runs.WithLabelValues(kind, outcome).Inc()
	runDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordScene counts one scene result ("drawn", "missing").
func RecordScene(result string) { scenes.WithLabelValues(result).Inc() }

// RecordExport counts an export outcome ("ok", "error").
func RecordExport(outcome string) { exports.WithLabelValues(outcome).Inc() }

// Package metrics provides Prometheus instrumentation for the moderation
// services. It exposes counters for gate outcomes, violations and
// suspensions, and a histogram of spam scores.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GateChecks counts gate decisions, labeled by gate ("client", "server")
	// and outcome ("allowed", "rejected", "suspended").
	GateChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_gate_checks_total",
		Help: "Total number of enforcement gate checks",
	}, []string{"gate", "outcome"})

	// Violations counts recorded violations, labeled by kind
	// ("banned_content", "spam").
	Violations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_violations_total",
		Help: "Total number of recorded moderation violations",
	}, []string{"kind"})

	// Suspensions counts suspensions started by the warning threshold.
	Suspensions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moderation_suspensions_total",
		Help: "Total number of temporary suspensions started",
	})

	// LedgerErrors counts storage failures the ledger absorbed, labeled by
	// operation ("get", "set", "delete", "update").
	LedgerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_ledger_errors_total",
		Help: "Ledger storage errors handled by failing open",
	}, []string{"op"})

	// SpamScore records spam heuristic scores from async review.
	SpamScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_spam_score",
		Help:    "Spam heuristic score per reviewed item",
		Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	// Actions counts async review outcomes, labeled by action.
	Actions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_actions_total",
		Help: "Async review outcomes by moderation action",
	}, []string{"action"})

	// RateLimited counts write requests refused by the rate limiter.
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moderation_rate_limited_total",
		Help: "Write requests refused by the per-actor rate limiter",
	})
)

func init() {
	prometheus.MustRegister(
		GateChecks,
		Violations,
		Suspensions,
		LedgerErrors,
		SpamScore,
		Actions,
		RateLimited,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

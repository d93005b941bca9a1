package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltrail_orders_submitted_total",
			Help: "Total number of orders submitted (by side, reason and strategy tag).",
		},
		[]string{"side", "reason", "strategy"},
	)

	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltrail_orders_rejected_total",
			Help: "Orders dropped before submission by validation or sizing.",
		},
		[]string{"side", "reason"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voltrail_cycle_duration_seconds",
			Help:    "Wall time of one full analysis cycle.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltrail_cycles_total",
			Help: "Loop iterations by outcome (completed, disabled, invalid_config).",
		},
		[]string{"outcome"},
	)

	CandidatesRanked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voltrail_candidates_ranked",
			Help: "Candidates returned by the last screening pass.",
		},
	)

	PositionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voltrail_positions_open",
			Help: "Open positions counted at the start of the last buy phase.",
		},
	)

	TrailingActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voltrail_trailing_active",
			Help: "Symbols whose trailing stop is currently armed.",
		},
	)

	SymbolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltrail_symbol_errors_total",
			Help: "Per-symbol failures that were isolated and skipped (by phase).",
		},
		[]string{"phase"},
	)

	QuoteBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voltrail_quote_balance",
			Help: "Free quote currency balance seen by the last wallet snapshot.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		OrdersRejected,
		CycleDuration,
		CyclesTotal,
		CandidatesRanked,
		PositionsOpen,
		TrailingActive,
		SymbolErrors,
		QuoteBalance,
	)
}

package calc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// calculationsTotal counts settled calculations by mode and outcome.
	calculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wrangle_calculations_total",
			Help: "Total number of settled calculations by mode and status",
		},
		[]string{"mode", "status"},
	)

	// retriesTotal counts internal example re-executions triggered by
	// results smaller than the desired row count.
	retriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wrangle_example_retries_total",
			Help: "Total number of internal example re-executions",
		},
	)

	// calculationSeconds observes wall time per settled calculation.
	calculationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wrangle_calculation_seconds",
			Help:    "Wall time of settled calculations by mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// budgetRows tracks the most recent example input row budget.
	budgetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wrangle_example_budget_rows",
			Help: "Input row budget of the most recent example execution",
		},
	)
)

const (
	statusSuccess   = "success"
	statusError     = "error"
	statusCancelled = "cancelled"
)

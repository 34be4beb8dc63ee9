package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recomputesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "truck_ledger_recomputes_total",
			Help: "Total number of trip total recomputations",
		},
	)

	staleTotalsCorrected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "truck_ledger_stale_totals_corrected_total",
			Help: "Trips whose stored total differed from a fresh recompute",
		},
	)

	createCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truck_ledger_create_compensations_total",
			Help: "Trip creations rolled back after a child write failed",
		},
		[]string{"result"},
	)
)

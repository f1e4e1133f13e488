package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MeasurementsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sproutd_measurements_ingested_total",
			Help: "Total number of measurements accepted from nodes",
		},
		[]string{"type"},
	)

	WarningsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sproutd_warnings_created_total",
			Help: "Total number of threshold-breach warnings recorded",
		},
		[]string{"threshold_type"},
	)

	WarningsDismissedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sproutd_warnings_dismissed_total",
			Help: "Total number of warnings dismissed by users",
		},
	)

	NodeErrorsReportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sproutd_node_errors_reported_total",
			Help: "Total number of error reports received from nodes",
		},
		[]string{"severity"},
	)
)

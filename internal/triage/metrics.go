package triage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportd",
		Subsystem: "triage",
		Name:      "candidates_total",
		Help:      "Discovery candidates by disposition.",
	}, []string{"disposition"})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportd",
		Subsystem: "triage",
		Name:      "sweep_errors_total",
		Help:      "Candidate-level failures during sweeps.",
	})
)

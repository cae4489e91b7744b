package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var contextsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reportd",
	Subsystem: "retrieval",
	Name:      "contexts_total",
	Help:      "Resolved contexts by source.",
}, []string{"source"})

package blobcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reportd",
	Subsystem: "blobcache",
	Name:      "lookups_total",
	Help:      "Cache lookups by artifact namespace and result.",
}, []string{"namespace", "result"})

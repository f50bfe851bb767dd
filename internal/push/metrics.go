package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pmdash_push_applied_total",
		Help: "Push messages applied to the cache, by type",
	}, []string{"type"})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pmdash_push_dropped_total",
		Help: "Push messages dropped as malformed or unrecognized",
	})
)

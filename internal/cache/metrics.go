package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pmdash_cache_hits_total",
		Help: "Cache reads answered from a fresh entry",
	}, []string{"kind"})

	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pmdash_cache_misses_total",
		Help: "Cache reads that found no usable entry",
	}, []string{"kind"})

	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pmdash_cache_invalidations_total",
		Help: "Entries marked stale by structural events",
	}, []string{"kind"})
)

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// hitsTotal counts full results served from the cache.
	hitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wrangle_cache_hits_total",
			Help: "Total number of full results served from the cache",
		},
	)

	// missesTotal counts full results that had to be recomputed.
	missesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wrangle_cache_misses_total",
			Help: "Total number of full results recomputed after a cache miss",
		},
	)
)

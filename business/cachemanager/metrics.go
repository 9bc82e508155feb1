package cachemanager

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_decisions_total",
			Help: "Caching decisions by outcome (scheduled, replaced, no_data, failed).",
		},
		[]string{"outcome"},
	)

	CachePushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_pushes_total",
			Help: "Executed content pushes by result (sent, failed, skipped, duplicate, bookkeeping_lost).",
		},
		[]string{"result"},
	)

	CacheNetworkProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_network_probes_total",
			Help: "Silent network-availability pushes by result.",
		},
		[]string{"result"},
	)

	CacheHitRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hitrate",
		Help: "Share of proactively cached videos that were watched, as of the last evaluation.",
	})
)

func init() {
	prometheus.MustRegister(
		CacheDecisionsTotal,
		CachePushesTotal,
		CacheNetworkProbesTotal,
		CacheHitRate,
	)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fundlens_build_info",
			Help: "Build information of fundlens",
		},
		[]string{"version", "commit"},
	)

	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundlens_fetch_attempts_total",
			Help: "Total number of HTTP fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	ChainReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundlens_chain_reads_total",
			Help: "Total number of contract reads",
		},
		[]string{"method", "status"},
	)

	ChainReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fundlens_chain_read_duration_seconds",
			Help:    "Duration of contract reads including retries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
		[]string{"method"},
	)

	TxTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundlens_tx_transitions_total",
			Help: "Total number of transaction lifecycle transitions by target state",
		},
		[]string{"state"},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundlens_refresh_total",
			Help: "Total number of campaign refresh cycles",
		},
		[]string{"status"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fundlens_refresh_duration_seconds",
			Help:    "Duration of campaign refresh cycles",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~51s
		},
	)
)

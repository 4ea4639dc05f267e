package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save-protocol and cache-mirror metrics, exposed via the web UI's /metrics
// endpoint.
//
//nolint:gochecknoglobals // Prometheus collectors are registered once at init
var (
	saveAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_save_attempts_total",
			Help: "Total number of remote save attempts by outcome",
		},
		[]string{"outcome"},
	)
	savesExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "project_saves_exhausted_total",
			Help: "Total number of saves that failed after all retry attempts",
		},
	)
	mirrorWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "project_cache_mirror_writes_total",
			Help: "Total number of debounced cache mirror writes",
		},
	)
)

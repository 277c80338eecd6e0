package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	live = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "captchad_store_challenges",
		Help: "The number of challenges held in memory after the last sweep",
	})

	swept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captchad_store_swept_total",
		Help: "The number of expired challenges removed by the sweeper",
	})

	sweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "captchad_store_sweep_failures_total",
		Help: "The number of sweep passes that panicked",
	})
)

package challenge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var TimeTaken = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "captchad_generation_time",
	Help:    "The time taken to generate a challenge payload (milliseconds)",
	Buckets: prometheus.ExponentialBucketsRange(0.05, 1000, 16),
}, []string{"type"})

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegrab_analyses_total",
		Help: "Total number of analysis requests, by outcome",
	}, []string{"outcome"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegrab_cache_lookups_total",
		Help: "Total number of cache lookups, by result",
	}, []string{"result"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framegrab_frames_sampled_total",
		Help: "Total number of frames captured across all analyses",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framegrab_analysis_duration_seconds",
		Help:    "Duration of analysis stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	CacheSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framegrab_cache_sweeps_total",
		Help: "Total number of cache sweep runs",
	})
)

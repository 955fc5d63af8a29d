package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportbuilder",
			Name:      "crawl_pages_total",
			Help:      "Pages extracted per outcome",
		},
		[]string{"status"},
	)

	crawlDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reportbuilder",
			Name:      "crawl_duration_seconds",
			Help:      "Time to crawl one sub-question's result set",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
	)
)

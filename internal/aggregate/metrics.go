package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subquestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportbuilder",
			Name:      "subquestions_total",
			Help:      "Sub-question pipeline runs by outcome",
		},
		[]string{"status"},
	)

	researchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reportbuilder",
			Name:      "research_duration_seconds",
			Help:      "Time to gather research for one topic",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
		},
	)
)

package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportbuilder",
			Name:      "search_requests_total",
			Help:      "Search provider requests by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	searchFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reportbuilder",
			Name:      "search_fallbacks_total",
			Help:      "Fallback provider attempts",
		},
	)
)

package ubibot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UpstreamRequests counts calls against the UbiBot API by operation and outcome.
var UpstreamRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ubibot_upstream_requests_total",
		Help: "Requests issued against the UbiBot API",
	},
	[]string{"op", "outcome"},
)

var UpstreamLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ubibot_upstream_request_duration_seconds",
		Help:    "Latency of UbiBot API requests",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"op"},
)

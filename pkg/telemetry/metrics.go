package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var DecodeFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "telemetry_decode_failures_total",
		Help: "Value containers that could not be decoded into a field mapping",
	},
)

// ChannelsClassified counts channels per matched device kind.
var ChannelsClassified = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telemetry_channels_classified_total",
		Help: "Channels matched to a device kind",
	},
	[]string{"kind"},
)

var ChannelFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telemetry_channel_failures_total",
		Help: "Per-channel failures absorbed while aggregating",
	},
	[]string{"op"},
)

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Inbound messages processed, by channel",
		},
		[]string{"channel"},
	)

	metricRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "relay",
			Name:      "replies_total",
			Help:      "Reply attempts, by outcome (ok, filtered, transient, fatal)",
		},
		[]string{"outcome"},
	)

	metricCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "relay",
			Name:      "commands_total",
			Help:      "Administrative commands handled, by command and result",
		},
		[]string{"command", "result"},
	)

	metricGenerateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "remora",
			Subsystem: "relay",
			Name:      "generate_duration_seconds",
			Help:      "Wall time of generative-service calls",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	metricSnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "relay",
			Name:      "snapshots_total",
			Help:      "Transcript snapshot writes, by result",
		},
		[]string{"result"},
	)

	metricDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Inbound messages dropped due to a full inbox",
		},
	)
)

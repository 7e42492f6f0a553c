package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SSEActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sse_active_connections",
		Help: "Number of active SSE connections",
	})

	SSEConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_connections_total",
			Help: "Total number of SSE connections",
		},
		[]string{"status"},
	)

	SSEMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_messages_sent_total",
			Help: "Total number of frames sent via SSE",
		},
		[]string{"type"},
	)

	SSEErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_errors_total",
			Help: "Total number of SSE errors",
		},
		[]string{"error_type"},
	)
)

package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of message store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of message store operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"backend", "operation"},
	)

	StoreConnectionStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_connection_status",
			Help: "Store connection status (1=connected, 0=disconnected)",
		},
		[]string{"client_type"},
	)

	StoreListSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "store_messages_list_size",
		Help: "Current size of the recent messages list",
	})

	FanoutActiveSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fanout_active_subscriptions",
			Help: "Number of active fan-out subscriptions",
		},
		[]string{"backend"},
	)

	FanoutPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_published_total",
			Help: "Total number of fan-out publish operations",
		},
		[]string{"backend", "status"},
	)

	FanoutOverflows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_subscriber_overflows_total",
			Help: "Total number of events a slow subscriber could not buffer",
		},
		[]string{"policy"},
	)
)

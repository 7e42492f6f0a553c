package metrics

import "github.com/prometheus/client_golang/prometheus"

// Producer metrics
var (
	ProducerMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_sent_total",
			Help: "Total number of messages sent to Kafka",
		},
		[]string{"topic", "status"},
	)

	ProducerMessageSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_message_size_bytes",
			Help:    "Size of produced messages in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"topic"},
	)

	ProducerSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_send_duration_seconds",
			Help:    "Duration of Kafka producer send operations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"topic"},
	)

	ProducerConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kafka_producer_connection_status",
		Help: "Kafka producer connection status (1=connected, 0=disconnected)",
	})

	ProducerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_errors_total",
			Help: "Total number of Kafka producer errors",
		},
		[]string{"topic", "error_type"},
	)
)

// Consumer metrics
var (
	ConsumerMessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_consumed_total",
			Help: "Total number of messages consumed from Kafka",
		},
		[]string{"topic", "partition", "status"},
	)

	ConsumerProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_message_processing_duration_seconds",
			Help:    "Duration of Kafka consumer message processing in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"topic", "partition"},
	)

	ConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (high water mark - committed offset)",
		},
		[]string{"topic", "partition", "consumer_group"},
	)

	ConsumerLagSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag_seconds",
			Help: "Kafka consumer lag in seconds (current time - record timestamp)",
		},
		[]string{"topic", "partition", "consumer_group"},
	)

	ConsumerConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kafka_consumer_connection_status",
		Help: "Kafka consumer connection status (1=connected, 0=disconnected)",
	})

	ConsumerCurrentOffset = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_current_offset",
			Help: "Committed offset position of the consumer group",
		},
		[]string{"topic", "partition", "consumer_group"},
	)

	ConsumerHighWaterMark = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_high_water_mark",
			Help: "High water mark (latest offset) of the topic partition",
		},
		[]string{"topic", "partition"},
	)

	ConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Total number of Kafka consumer errors",
		},
		[]string{"topic", "partition", "error_type"},
	)
)

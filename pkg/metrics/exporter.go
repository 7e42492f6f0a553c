package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/downfa11-org/go-relay/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every relay collector plus the Go runtime and process collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	Registry.MustRegister(ProducerMessagesSent, ProducerMessageSize, ProducerSendDuration, ProducerConnectionStatus, ProducerErrors)
	Registry.MustRegister(ConsumerMessagesConsumed, ConsumerProcessingDuration, ConsumerLag, ConsumerLagSeconds,
		ConsumerConnectionStatus, ConsumerCurrentOffset, ConsumerHighWaterMark, ConsumerErrors)
	Registry.MustRegister(StoreOperations, StoreOperationDuration, StoreConnectionStatus, StoreListSize,
		FanoutActiveSubscriptions, FanoutPublished, FanoutOverflows)
	Registry.MustRegister(SSEActiveConnections, SSEConnections, SSEMessagesSent, SSEErrors)
	Registry.MustRegister(HTTPRequests, HTTPRequestDuration, HTTPRequestsInProgress)
}

// Handler serves the relay registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// NewMetricsServer builds the standalone exporter with /metrics and /health.
func NewMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartMetricsServer runs the exporter in the background; stop it with Shutdown.
func StartMetricsServer(port int) *http.Server {
	srv := NewMetricsServer(port)
	go func() {
		util.Info("[METRICS] Prometheus exporter listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Error("[METRICS] Failed to start metrics server: %v", err)
		}
	}()
	return srv
}

func StopMetricsServer(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequests.WithLabelValues(method, route, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

// PartitionLabel formats a partition number as a label value.
func PartitionLabel(partition int) string {
	return strconv.Itoa(partition)
}

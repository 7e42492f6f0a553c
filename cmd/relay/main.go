package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/consumer"
	"github.com/downfa11-org/go-relay/pkg/fanout"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/offset"
	"github.com/downfa11-org/go-relay/pkg/producer"
	"github.com/downfa11-org/go-relay/pkg/server"
	"github.com/downfa11-org/go-relay/pkg/store"
	"github.com/downfa11-org/go-relay/pkg/stream"
	"github.com/downfa11-org/go-relay/util"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		util.Fatal("Failed to load config: %v", err)
	}

	util.Info("Starting relay: topic=%s group=%s brokers=%v store=%s fanout=%s",
		cfg.Topic, cfg.GroupID, cfg.BrokerAddrs, cfg.StoreBackend, cfg.FanoutBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.StoreBackend == config.StoreBackendRedis || cfg.FanoutBackend == config.FanoutBackendRedis {
		rdb = store.NewRedisClient(store.RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			MaxRetries: cfg.RedisRetries,
		})
		if err := store.Ping(ctx, rdb, cfg.MaxConnectRetries, cfg.ConnectRetryBackoff()); err != nil {
			util.Fatal("Redis unavailable at %s: %v", cfg.RedisAddr, err)
		}
		util.Info("Connected to redis at %s", cfg.RedisAddr)
	}

	var nc *nats.Conn
	if cfg.FanoutBackend == config.FanoutBackendNATS {
		nc, err = fanout.DialNATS(cfg.NatsURL, cfg.ClientID)
		if err != nil {
			util.Fatal("NATS unavailable: %v", err)
		}
		util.Info("Connected to NATS at %s", nc.ConnectedUrl())
	}

	fanoutOpts := fanout.Options{
		BufferSize: cfg.SubscriberBufferSize,
		Overflow:   fanout.ParseOverflowPolicy(cfg.SubscriberOverflow),
	}
	var channel fanout.Channel
	switch cfg.FanoutBackend {
	case config.FanoutBackendRedis:
		channel = fanout.NewRedisChannel(rdb, cfg.PubSubChannel, fanoutOpts)
	case config.FanoutBackendNATS:
		channel = fanout.NewNATSChannel(nc, cfg.PubSubChannel, fanoutOpts)
	default:
		channel = fanout.NewHub(fanoutOpts)
	}

	var backend store.Backend = store.NewMemoryBackend()
	if cfg.StoreBackend == config.StoreBackendRedis {
		backend = store.NewRedisBackend(rdb, cfg.StoreKey)
	}
	messages := store.New(backend, channel, cfg.StoreCapacity)

	prod := producer.NewProducer(cfg)
	offsets := offset.NewOffsetManager()
	lag := consumer.NewLagMonitor(cfg, consumer.NewKafkaAdminDialer(cfg), offsets)
	cons := consumer.NewConsumer(cfg, messages, lag)

	if err := cons.Start(ctx); err != nil {
		util.Fatal("Consumer failed to start: %v", err)
	}

	streams := stream.NewManager(channel, stream.Options{
		MaxConnections: cfg.MaxStreamConnections,
		AcceptRate:     cfg.StreamAcceptRate,
		Heartbeat:      cfg.StreamHeartbeatInterval,
		WriteTimeout:   cfg.StreamWriteTimeout,
	})
	srv := server.NewServer(cfg, prod, messages, offsets, streams)
	if err := srv.Start(); err != nil {
		util.Fatal("HTTP server failed: %v", err)
	}

	var exporter *http.Server
	if cfg.EnableExporter {
		exporter = metrics.StartMetricsServer(cfg.ExporterPort)
		util.Info("Prometheus exporter started on port %d", cfg.ExporterPort)
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		util.Warn("sd_notify failed: %v", err)
	} else if ok {
		util.Debug("Notified systemd readiness")
	}

	<-ctx.Done()
	util.Info("Shutting down relay")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		util.Warn("HTTP shutdown: %v", err)
	}
	if err := cons.Stop(); err != nil {
		util.Warn("Consumer stop: %v", err)
	}
	if err := prod.Close(); err != nil {
		util.Warn("Producer close: %v", err)
	}
	if err := channel.Close(); err != nil {
		util.Warn("Fan-out close: %v", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			util.Warn("NATS drain: %v", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			util.Warn("Redis close: %v", err)
		}
	}
	if err := metrics.StopMetricsServer(shutdownCtx, exporter); err != nil {
		util.Warn("Exporter shutdown: %v", err)
	}
	util.Info("Relay stopped")
}

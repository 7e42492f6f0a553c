package config

import (
	"os"
	"strings"
	"time"

	"github.com/downfa11-org/go-relay/util"
)

func (cfg *Config) Normalize() {
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = 3000
	}
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}

	// log connection
	if len(cfg.BrokerAddrs) == 0 {
		cfg.BrokerAddrs = []string{"localhost:9092"}
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		cfg.ClientID = "kafka-relay"
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = "message-board"
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		cfg.GroupID = "message-board-consumer-group"
	}
	if cfg.MaxConnectRetries <= 0 {
		cfg.MaxConnectRetries = 3
	}
	if cfg.ConnectRetryBackoffMS <= 0 {
		cfg.ConnectRetryBackoffMS = 100
	}

	// producer
	cfg.CompressionType = strings.ToLower(strings.TrimSpace(cfg.CompressionType))
	switch cfg.CompressionType {
	case "none", "gzip", "snappy", "lz4", "zstd":
	case "":
		cfg.CompressionType = "none"
	default:
		util.Warn("Invalid compression_type '%s', defaulting to 'none'", cfg.CompressionType)
		cfg.CompressionType = "none"
	}
	if cfg.ProducerMaxAttempts <= 0 {
		cfg.ProducerMaxAttempts = 10
	}
	if cfg.ProducerBackoffMinMS <= 0 {
		cfg.ProducerBackoffMinMS = 300
	}
	if cfg.ProducerBackoffMaxMS < cfg.ProducerBackoffMinMS {
		cfg.ProducerBackoffMaxMS = 2000
		if cfg.ProducerBackoffMaxMS < cfg.ProducerBackoffMinMS {
			cfg.ProducerBackoffMaxMS = cfg.ProducerBackoffMinMS
		}
	}
	if cfg.ProducerTimeoutMS <= 0 {
		cfg.ProducerTimeoutMS = 10000
	}

	// consumer
	if cfg.ConsumerMinBytes <= 0 {
		cfg.ConsumerMinBytes = 1
	}
	if cfg.ConsumerMaxBytes <= 0 {
		cfg.ConsumerMaxBytes = 1 << 20
	}
	if cfg.ConsumerMaxWaitMS <= 0 {
		cfg.ConsumerMaxWaitMS = 250
	}
	if cfg.StoreRetryBackoffMS <= 0 {
		cfg.StoreRetryBackoffMS = 500
	}
	if cfg.LagUpdateInterval < time.Second {
		cfg.LagUpdateInterval = 30 * time.Second
	}

	// store
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case StoreBackendMemory, StoreBackendRedis:
	case "":
		cfg.StoreBackend = StoreBackendMemory
	default:
		util.Warn("Invalid store_backend '%s', defaulting to '%s'", cfg.StoreBackend, StoreBackendMemory)
		cfg.StoreBackend = StoreBackendMemory
	}
	if cfg.StoreCapacity <= 0 {
		cfg.StoreCapacity = 100
	}
	if strings.TrimSpace(cfg.StoreKey) == "" {
		cfg.StoreKey = "messages"
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.RedisRetries <= 0 {
		cfg.RedisRetries = 3
	}

	// fan-out
	cfg.FanoutBackend = strings.ToLower(strings.TrimSpace(cfg.FanoutBackend))
	switch cfg.FanoutBackend {
	case FanoutBackendMemory, FanoutBackendRedis, FanoutBackendNATS:
	case "":
		cfg.FanoutBackend = FanoutBackendMemory
	default:
		util.Warn("Invalid fanout_backend '%s', defaulting to '%s'", cfg.FanoutBackend, FanoutBackendMemory)
		cfg.FanoutBackend = FanoutBackendMemory
	}
	if strings.TrimSpace(cfg.PubSubChannel) == "" {
		cfg.PubSubChannel = "messages:new"
	}
	if strings.TrimSpace(cfg.NatsURL) == "" {
		cfg.NatsURL = "nats://localhost:4222"
	}
	if cfg.SubscriberBufferSize <= 0 {
		cfg.SubscriberBufferSize = 256
	}
	switch cfg.SubscriberOverflow {
	case OverflowDisconnect, OverflowDropOldest, OverflowDropNewest:
	case "":
		cfg.SubscriberOverflow = OverflowDisconnect
	default:
		util.Warn("Invalid subscriber_overflow '%s', defaulting to '%s'", cfg.SubscriberOverflow, OverflowDisconnect)
		cfg.SubscriberOverflow = OverflowDisconnect
	}

	// stream
	if cfg.MaxStreamConnections <= 0 {
		cfg.MaxStreamConnections = 1000
	}
	if cfg.StreamAcceptRate < 0 {
		cfg.StreamAcceptRate = 0
	}
	if cfg.StreamHeartbeatInterval <= 0 {
		cfg.StreamHeartbeatInterval = 15 * time.Second
	}
	if cfg.StreamWriteTimeout <= 0 {
		cfg.StreamWriteTimeout = 10 * time.Second
	}

	if cfg.RecentDefaultLimit <= 0 {
		cfg.RecentDefaultLimit = 50
	}
	if cfg.RecentDefaultLimit > cfg.StoreCapacity {
		cfg.RecentDefaultLimit = cfg.StoreCapacity
	}
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideEnvDuration(target *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*target = d
		return
	}
	// bare numbers are milliseconds
	if ms := util.ParseInt64(v, -1); ms > 0 {
		*target = time.Duration(ms) * time.Millisecond
	}
}

func overrideEnvStringSlice(target *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		if parts := util.SplitList(v); len(parts) > 0 {
			*target = parts
		}
	}
}

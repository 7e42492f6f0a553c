package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/downfa11-org/go-relay/util"
	"gopkg.in/yaml.v3"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"

	FanoutBackendMemory = "memory"
	FanoutBackendRedis  = "redis"
	FanoutBackendNATS   = "nats"

	OverflowDisconnect = "disconnect"
	OverflowDropOldest = "drop-oldest"
	OverflowDropNewest = "drop-newest"
)

// Config represents the relay configuration
type Config struct {
	// Server settings
	HTTPPort       int           `yaml:"http_port" json:"http.port"`
	EnableExporter bool          `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter.port"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`

	// Log (kafka) connection
	BrokerAddrs           []string `yaml:"broker_addrs" json:"broker_addrs"`
	ClientID              string   `yaml:"client_id" json:"client_id"`
	Topic                 string   `yaml:"topic" json:"topic"`
	GroupID               string   `yaml:"group_id" json:"group_id"`
	MaxConnectRetries     int      `yaml:"max_connect_retries" json:"max_connect_retries"`
	ConnectRetryBackoffMS int      `yaml:"connect_retry_backoff_ms" json:"connect_retry_backoff_ms"`

	// Producer
	CompressionType      string `yaml:"compression_type" json:"compression_type"`
	ProducerMaxAttempts  int    `yaml:"producer_max_attempts" json:"producer_max_attempts"`
	ProducerBackoffMinMS int    `yaml:"producer_backoff_min_ms" json:"producer_backoff_min_ms"`
	ProducerBackoffMaxMS int    `yaml:"producer_backoff_max_ms" json:"producer_backoff_max_ms"`
	ProducerTimeoutMS    int    `yaml:"producer_timeout_ms" json:"producer_timeout_ms"`

	// Consumer
	ConsumerMinBytes    int           `yaml:"consumer_min_bytes" json:"consumer_min_bytes"`
	ConsumerMaxBytes    int           `yaml:"consumer_max_bytes" json:"consumer_max_bytes"`
	ConsumerMaxWaitMS   int           `yaml:"consumer_max_wait_ms" json:"consumer_max_wait_ms"`
	StoreRetryBackoffMS int           `yaml:"store_retry_backoff_ms" json:"store_retry_backoff_ms"`
	LagUpdateInterval   time.Duration `yaml:"lag_update_interval" json:"lag_update_interval"`

	// Bounded store
	StoreBackend  string `yaml:"store_backend" json:"store_backend"`
	StoreCapacity int    `yaml:"store_capacity" json:"store_capacity"`
	StoreKey      string `yaml:"store_key" json:"store_key"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisRetries  int    `yaml:"redis_max_retries" json:"redis_max_retries"`

	// Fan-out
	FanoutBackend        string `yaml:"fanout_backend" json:"fanout_backend"`
	PubSubChannel        string `yaml:"pubsub_channel" json:"pubsub_channel"`
	NatsURL              string `yaml:"nats_url" json:"nats_url"`
	SubscriberBufferSize int    `yaml:"subscriber_buffer_size" json:"subscriber_buffer_size"`
	SubscriberOverflow   string `yaml:"subscriber_overflow" json:"subscriber_overflow"`

	// streaming setting
	MaxStreamConnections    int           `yaml:"max_stream_connections" json:"max.stream.connections"`
	StreamAcceptRate        float64       `yaml:"stream_accept_rate" json:"stream.accept.rate"`
	StreamHeartbeatInterval time.Duration `yaml:"stream_heartbeat_interval" json:"stream.heartbeat.interval"`
	StreamWriteTimeout      time.Duration `yaml:"stream_write_timeout" json:"stream.write.timeout"`

	// CRUD collaborator
	RecentDefaultLimit int `yaml:"recent_default_limit" json:"recent_default_limit"`
}

// Default returns a normalized config with every default applied.
func Default() *Config {
	cfg := &Config{EnableExporter: false, LogLevel: util.LogLevelInfo}
	cfg.Normalize()
	return cfg
}

// LoadConfig resolves configuration from defaults, an optional file, the environment
// and command-line flags, in increasing order of precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	brokers := fs.String("brokers", "", "Comma-separated kafka broker addresses")
	topic := fs.String("topic", "", "Topic to relay")
	groupID := fs.String("group-id", "", "Consumer group ID")
	httpPort := fs.Int("port", 0, "HTTP port")
	exporter := fs.Bool("exporter", false, "Enable standalone Prometheus exporter")
	exporterPort := fs.Int("exporter-port", 0, "Exporter port")
	logLevel := fs.String("log-level", "", "Log Level (debug, info, warn, error)")
	storeBackend := fs.String("store", "", "Store backend (memory, redis)")
	fanoutBackend := fs.String("fanout", "", "Fan-out backend (memory, redis, nats)")
	redisAddr := fs.String("redis-addr", "", "Redis address")
	natsURL := fs.String("nats-url", "", "NATS server URL")
	capacity := fs.Int("store-capacity", 0, "Number of recent messages kept")
	lagInterval := fs.Duration("lag-interval", 0, "Consumer lag update interval")
	heartbeat := fs.Duration("stream-heartbeat-interval", 0, "Stream keepalive interval")
	maxConns := fs.Int("max-stream-connections", 0, "Maximum stream connections")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}
	if *configPath != "" {
		if err := loadFile(cfg, *configPath); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "brokers":
			cfg.BrokerAddrs = util.SplitList(*brokers)
		case "topic":
			cfg.Topic = *topic
		case "group-id":
			cfg.GroupID = *groupID
		case "port":
			cfg.HTTPPort = *httpPort
		case "exporter":
			cfg.EnableExporter = *exporter
		case "exporter-port":
			cfg.ExporterPort = *exporterPort
		case "log-level":
			cfg.LogLevel = util.ParseLogLevel(*logLevel)
		case "store":
			cfg.StoreBackend = *storeBackend
		case "fanout":
			cfg.FanoutBackend = *fanoutBackend
		case "redis-addr":
			cfg.RedisAddr = *redisAddr
		case "nats-url":
			cfg.NatsURL = *natsURL
		case "store-capacity":
			cfg.StoreCapacity = *capacity
		case "lag-interval":
			cfg.LagUpdateInterval = *lagInterval
		case "stream-heartbeat-interval":
			cfg.StreamHeartbeatInterval = *heartbeat
		case "max-stream-connections":
			cfg.MaxStreamConnections = *maxConns
		}
	})

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	overrideEnvStringSlice(&cfg.BrokerAddrs, "KAFKA_BROKERS")
	overrideEnvString(&cfg.Topic, "KAFKA_TOPIC")
	overrideEnvString(&cfg.GroupID, "KAFKA_GROUP_ID")
	overrideEnvString(&cfg.ClientID, "KAFKA_CLIENT_ID")
	overrideEnvString(&cfg.CompressionType, "KAFKA_COMPRESSION")

	overrideEnvString(&cfg.StoreBackend, "STORE_BACKEND")
	overrideEnvInt(&cfg.StoreCapacity, "STORE_CAPACITY")
	overrideEnvString(&cfg.FanoutBackend, "FANOUT_BACKEND")
	overrideEnvString(&cfg.NatsURL, "NATS_URL")

	if host := os.Getenv("REDIS_HOST"); host != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.RedisAddr = host + ":" + port
	}
	overrideEnvString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideEnvString(&cfg.RedisPassword, "REDIS_PASSWORD")

	overrideEnvDuration(&cfg.LagUpdateInterval, "LAG_UPDATE_INTERVAL")
	overrideEnvInt(&cfg.HTTPPort, "HTTP_PORT")
	overrideEnvBool(&cfg.EnableExporter, "ENABLE_EXPORTER")
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.EnableExporter = true
		overrideEnvInt(&cfg.ExporterPort, "METRICS_PORT")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = util.ParseLogLevel(v)
	}
}

func (cfg *Config) ConnectRetryBackoff() time.Duration {
	return time.Duration(cfg.ConnectRetryBackoffMS) * time.Millisecond
}

func (cfg *Config) StoreRetryBackoff() time.Duration {
	return time.Duration(cfg.StoreRetryBackoffMS) * time.Millisecond
}

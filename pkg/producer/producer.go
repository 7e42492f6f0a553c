// Package producer appends messages to the durable log.
package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
	"github.com/segmentio/kafka-go"
)

// Writer is the part of *kafka.Writer the producer depends on.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type WriterFactory func(cfg *config.Config) (Writer, error)

type Producer struct {
	cfg       *config.Config
	newWriter WriterFactory

	mu        sync.Mutex
	writer    Writer
	connected bool
}

// NewProducer returns a producer that connects lazily on first Send.
func NewProducer(cfg *config.Config) *Producer {
	return NewProducerWithWriter(cfg, NewKafkaWriter)
}

func NewProducerWithWriter(cfg *config.Config, factory WriterFactory) *Producer {
	return &Producer{cfg: cfg, newWriter: factory}
}

// NewKafkaWriter builds a hash-partitioned kafka writer from cfg.
func NewKafkaWriter(cfg *config.Config) (Writer, error) {
	w := &kafka.Writer{
		Addr:            kafka.TCP(cfg.BrokerAddrs...),
		Topic:           cfg.Topic,
		Balancer:        &kafka.Hash{},
		MaxAttempts:     cfg.ProducerMaxAttempts,
		WriteBackoffMin: time.Duration(cfg.ProducerBackoffMinMS) * time.Millisecond,
		WriteBackoffMax: time.Duration(cfg.ProducerBackoffMaxMS) * time.Millisecond,
		WriteTimeout:    time.Duration(cfg.ProducerTimeoutMS) * time.Millisecond,
		RequiredAcks:    kafka.RequireAll,
		Compression:     compressionCodec(cfg.CompressionType),
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
		},
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			util.Error("[kafka-writer] "+msg, args...)
		}),
	}
	return w, nil
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}

// Connect builds the writer once; concurrent callers share the result.
func (p *Producer) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *Producer) connectLocked() error {
	if p.connected {
		return nil
	}
	w, err := p.newWriter(p.cfg)
	if err != nil {
		metrics.ProducerConnectionStatus.Set(0)
		return fmt.Errorf("create writer: %w: %v", types.ErrTransientIO, err)
	}
	p.writer = w
	p.connected = true
	metrics.ProducerConnectionStatus.Set(1)
	util.Info("Producer connected to %v (topic=%s, compression=%s)", p.cfg.BrokerAddrs, p.cfg.Topic, p.cfg.CompressionType)
	return nil
}

func (p *Producer) currentWriter() (Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p.writer, nil
}

// Send appends msg to the configured topic keyed by its id.
func (p *Producer) Send(ctx context.Context, msg types.Message) error {
	topic := p.cfg.Topic
	if err := msg.Validate(); err != nil {
		metrics.ProducerErrors.WithLabelValues(topic, "validation").Inc()
		return err
	}

	value, err := msg.Encode()
	if err != nil {
		metrics.ProducerErrors.WithLabelValues(topic, "serialization").Inc()
		return &types.SendError{Topic: topic, ID: msg.ID, Err: err}
	}

	w, err := p.currentWriter()
	if err != nil {
		metrics.ProducerErrors.WithLabelValues(topic, "connection").Inc()
		metrics.ProducerMessagesSent.WithLabelValues(topic, "error").Inc()
		return &types.SendError{Topic: topic, ID: msg.ID, Err: err}
	}

	start := time.Now()
	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ID),
		Value: value,
		Time:  msg.Time(),
	})
	metrics.ProducerSendDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProducerMessagesSent.WithLabelValues(topic, "error").Inc()
		metrics.ProducerErrors.WithLabelValues(topic, errorType(err)).Inc()
		util.Error("Failed to send message %s to %s: %v", msg.ID, topic, err)
		return &types.SendError{Topic: topic, ID: msg.ID, Err: fmt.Errorf("%w: %v", types.ErrTransientIO, err)}
	}

	metrics.ProducerMessagesSent.WithLabelValues(topic, "success").Inc()
	metrics.ProducerMessageSize.WithLabelValues(topic).Observe(float64(len(value)))
	util.Debug("Message %s sent to %s", msg.ID, topic)
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		if kerr.Temporary() {
			return "broker_temporary"
		}
		return "broker"
	}
	return "transport"
}

func (p *Producer) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close flushes and releases the writer. Safe to call more than once.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	p.connected = false
	metrics.ProducerConnectionStatus.Set(0)
	util.Info("Producer disconnected")
	return err
}

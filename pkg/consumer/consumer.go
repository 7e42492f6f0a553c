// Package consumer drains the log into the shared store and reports group lag.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
	"github.com/segmentio/kafka-go"
)

// RecordReader is the part of *kafka.Reader the consumer depends on.
type RecordReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ReaderFactory func(cfg *config.Config) RecordReader

// Prober checks that at least one broker answers.
type Prober func(ctx context.Context, cfg *config.Config) error

// Appender receives every decoded message; *store.Store implements it.
type Appender interface {
	Append(ctx context.Context, msg types.Message) error
}

type Consumer struct {
	cfg       *config.Config
	store     Appender
	lag       *LagMonitor
	newReader ReaderFactory
	probe     Prober

	state atomic.Int32

	mu     sync.Mutex
	reader RecordReader
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer(cfg *config.Config, store Appender, lag *LagMonitor) *Consumer {
	return NewConsumerWithReader(cfg, store, lag, NewKafkaReader, ProbeBrokers)
}

func NewConsumerWithReader(cfg *config.Config, store Appender, lag *LagMonitor, factory ReaderFactory, probe Prober) *Consumer {
	c := &Consumer{
		cfg:       cfg,
		store:     store,
		lag:       lag,
		newReader: factory,
		probe:     probe,
	}
	c.setState(types.ConsumerStateDisconnected)
	return c
}

// NewKafkaReader joins the configured group. A group without a committed
// offset starts at the head of the log.
func NewKafkaReader(cfg *config.Config) RecordReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.BrokerAddrs,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.ConsumerMinBytes,
		MaxBytes:    cfg.ConsumerMaxBytes,
		MaxWait:     time.Duration(cfg.ConsumerMaxWaitMS) * time.Millisecond,
		StartOffset: kafka.LastOffset,
		Dialer: &kafka.Dialer{
			ClientID: cfg.ClientID,
			Timeout:  10 * time.Second,
		},
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			util.Debug("[kafka-reader] "+msg, args...)
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			util.Error("[kafka-reader] "+msg, args...)
		}),
	})
}

func ProbeBrokers(ctx context.Context, cfg *config.Config) error {
	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: 5 * time.Second}
	var lastErr error
	for _, addr := range cfg.BrokerAddrs {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", types.ErrTransientIO, lastErr)
}

func (c *Consumer) State() types.ConsumerState {
	return types.ConsumerState(c.state.Load())
}

func (c *Consumer) setState(s types.ConsumerState) {
	c.state.Store(int32(s))
	util.Debug("Consumer state -> %s", s)
}

// Start connects, joins the group and begins consuming. It is a no-op unless
// the consumer is DISCONNECTED.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != types.ConsumerStateDisconnected {
		return nil
	}

	c.setState(types.ConsumerStateConnecting)
	if err := c.connect(ctx); err != nil {
		c.setState(types.ConsumerStateDisconnected)
		metrics.ConsumerConnectionStatus.Set(0)
		return err
	}
	metrics.ConsumerConnectionStatus.Set(1)

	reader := c.newReader(c.cfg)
	c.setState(types.ConsumerStateSubscribed)
	util.Info("Consumer subscribed to %s as group %s", c.cfg.Topic, c.cfg.GroupID)

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.reader, c.cancel, c.done = reader, cancel, done

	c.setState(types.ConsumerStateRunning)
	go c.run(loopCtx, reader, done)

	if c.lag != nil {
		if err := c.lag.Start(); err != nil {
			util.Warn("Lag monitor not started: %v", err)
		}
	}
	return nil
}

func (c *Consumer) connect(ctx context.Context) error {
	retries := c.cfg.MaxConnectRetries
	backoff := c.cfg.ConnectRetryBackoff()

	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = c.probe(ctx, c.cfg); err == nil {
			return nil
		}
		util.Warn("Consumer connect attempt %d/%d failed: %v", attempt, retries, err)
		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("consumer connect to %v failed after %d attempts: %w", c.cfg.BrokerAddrs, retries, err)
}

// Stop stops fetching, waits for the loop, stops the lag monitor and closes the
// reader, in that order. Safe to call more than once.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == types.ConsumerStateDisconnected {
		return nil
	}
	c.setState(types.ConsumerStateStopping)

	c.cancel()
	<-c.done

	if c.lag != nil {
		c.lag.Stop()
	}

	err := c.reader.Close()
	c.reader, c.cancel, c.done = nil, nil, nil
	c.setState(types.ConsumerStateDisconnected)
	metrics.ConsumerConnectionStatus.Set(0)
	util.Info("Consumer stopped")
	return err
}

func (c *Consumer) run(ctx context.Context, reader RecordReader, done chan struct{}) {
	defer close(done)
	bo := newBackoff(c.cfg.StoreRetryBackoff(), maxStoreRetryBackoff)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			metrics.ConsumerErrors.WithLabelValues(c.cfg.Topic, "all", "fetch").Inc()
			util.Error("Fetch from %s failed: %v", c.cfg.Topic, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.duration()):
			}
			continue
		}
		bo.reset()

		if !c.handle(ctx, reader, m, bo) {
			return
		}
	}
}

// handle processes m until it may be committed. It returns false when the loop must exit.
func (c *Consumer) handle(ctx context.Context, reader RecordReader, m kafka.Message, bo *backoff) bool {
	rec := toRecord(m)
	for {
		err := c.process(ctx, rec)
		if err == nil {
			break
		}
		wait := bo.duration()
		util.Warn("Store write for %s/%d@%d failed, retrying in %s: %v", rec.Topic, rec.Partition, rec.Offset, wait, err)
		select {
		case <-ctx.Done():
			// not committed; redelivered after restart
			return false
		case <-time.After(wait):
		}
	}
	bo.reset()

	commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reader.CommitMessages(commitCtx, m); err != nil {
		metrics.ConsumerErrors.WithLabelValues(rec.Topic, metrics.PartitionLabel(rec.Partition), "commit").Inc()
		util.Error("Commit %s/%d@%d failed: %v", rec.Topic, rec.Partition, rec.Offset, err)
		return ctx.Err() == nil
	}
	return true
}

// process returns an error only for store write failures, which must not be committed.
func (c *Consumer) process(ctx context.Context, rec types.Record) error {
	start := time.Now()
	partition := metrics.PartitionLabel(rec.Partition)
	status := "success"
	defer func() {
		metrics.ConsumerMessagesConsumed.WithLabelValues(rec.Topic, partition, status).Inc()
		metrics.ConsumerProcessingDuration.WithLabelValues(rec.Topic, partition).Observe(time.Since(start).Seconds())
	}()

	if len(rec.Value) == 0 {
		status = "skipped"
		util.Debug("Skipping empty record %s/%d@%d", rec.Topic, rec.Partition, rec.Offset)
		return nil
	}

	msg, err := types.DecodeMessage(rec.Value)
	if err != nil {
		status = "malformed"
		malformed := &types.MalformedRecordError{Topic: rec.Topic, Partition: rec.Partition, Offset: rec.Offset, Err: err}
		metrics.ConsumerErrors.WithLabelValues(rec.Topic, partition, "parse").Inc()
		util.Error("%v", malformed)
		return nil
	}

	if rec.Timestamp > 0 {
		lagSeconds := float64(time.Now().UnixMilli()-rec.Timestamp) / 1000
		metrics.ConsumerLagSeconds.WithLabelValues(rec.Topic, partition, c.cfg.GroupID).Set(lagSeconds)
	}

	if err := c.store.Append(ctx, msg); err != nil {
		if errors.Is(err, types.ErrPublish) {
			status = "publish_error"
			metrics.ConsumerErrors.WithLabelValues(rec.Topic, partition, "publish").Inc()
			util.Warn("Message %s stored but not published: %v", msg.ID, err)
			return nil
		}
		status = "error"
		metrics.ConsumerErrors.WithLabelValues(rec.Topic, partition, "store").Inc()
		return err
	}

	util.Debug("Relayed message %s from %s/%d@%d", msg.ID, rec.Topic, rec.Partition, rec.Offset)
	return nil
}

func toRecord(m kafka.Message) types.Record {
	rec := types.Record{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
	}
	if !m.Time.IsZero() {
		rec.Timestamp = m.Time.UnixMilli()
	}
	return rec
}

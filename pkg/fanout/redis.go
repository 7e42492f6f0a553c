package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisChannel fans messages out through a redis pub/sub channel so that several relay
// instances can share one store. Each subscription holds its own pub/sub connection.
// The client is borrowed and never closed here.
type RedisChannel struct {
	client  redis.UniversalClient
	channel string
	opts    Options

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewRedisChannel(client redis.UniversalClient, channel string, opts Options) *RedisChannel {
	return &RedisChannel{
		client:  client,
		channel: channel,
		opts:    opts.normalized(),
		subs:    make(map[*Subscription]struct{}),
	}
}

func (r *RedisChannel) Publish(ctx context.Context, msg types.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		metrics.FanoutPublished.WithLabelValues(backendRedis, "error").Inc()
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	metrics.FanoutPublished.WithLabelValues(backendRedis, "success").Inc()
	return nil
}

func (r *RedisChannel) Subscribe(ctx context.Context) (*Subscription, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, types.ErrSubscriptionClosed
	}
	r.mu.Unlock()

	ps := r.client.Subscribe(ctx, r.channel)
	// wait for the subscribe confirmation so that no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		metrics.StoreConnectionStatus.WithLabelValues("subscriber").Set(0)
		return nil, fmt.Errorf("redis subscribe %s: %w: %v", r.channel, types.ErrTransientIO, err)
	}
	metrics.StoreConnectionStatus.WithLabelValues("subscriber").Set(1)

	pumpCtx, cancel := context.WithCancel(context.Background())
	var sub *Subscription
	sub = newSubscription(r.opts, func() {
		cancel()
		_ = ps.Close()
		r.mu.Lock()
		if _, ok := r.subs[sub]; ok {
			delete(r.subs, sub)
			metrics.FanoutActiveSubscriptions.WithLabelValues(backendRedis).Dec()
		}
		r.mu.Unlock()
	})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		_ = ps.Close()
		return nil, types.ErrSubscriptionClosed
	}
	r.subs[sub] = struct{}{}
	metrics.FanoutActiveSubscriptions.WithLabelValues(backendRedis).Inc()
	r.mu.Unlock()

	go r.pump(pumpCtx, ps, sub)
	return sub, nil
}

func (r *RedisChannel) pump(ctx context.Context, ps *redis.PubSub, sub *Subscription) {
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				sub.terminate(fmt.Errorf("redis subscription lost: %w", types.ErrTransientIO))
				return
			}
			msg, err := types.DecodeMessage([]byte(m.Payload))
			if err != nil {
				util.Warn("Dropping undecodable fan-out payload on %s: %v", r.channel, err)
				continue
			}
			sub.deliver(msg)
		}
	}
}

func (r *RedisChannel) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := make([]*Subscription, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(types.ErrSubscriptionClosed)
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps the window in a redis list so several relay instances can share it.
type RedisBackend struct {
	client redis.UniversalClient
	key    string
}

func NewRedisBackend(client redis.UniversalClient, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

func (r *RedisBackend) Name() string { return "redis" }

// Push runs LPUSH, LTRIM and LLEN in one MULTI/EXEC block.
func (r *RedisBackend) Push(ctx context.Context, msg types.Message, capacity int) (int64, error) {
	data, err := msg.Encode()
	if err != nil {
		return 0, err
	}

	var llen *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, data)
		pipe.LTrim(ctx, r.key, 0, int64(capacity-1))
		llen = pipe.LLen(ctx, r.key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis push %s: %w: %v", r.key, types.ErrTransientIO, err)
	}
	return llen.Val(), nil
}

func (r *RedisBackend) Range(ctx context.Context, limit int) ([]types.Message, error) {
	vals, err := r.client.LRange(ctx, r.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range %s: %w: %v", r.key, types.ErrTransientIO, err)
	}

	out := make([]types.Message, 0, len(vals))
	for _, v := range vals {
		msg, err := types.DecodeMessage([]byte(v))
		if err != nil {
			util.Warn("Skipping undecodable entry in %s: %v", r.key, err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (r *RedisBackend) Len(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen %s: %w: %v", r.key, types.ErrTransientIO, err)
	}
	return n, nil
}

type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries int
}

// NewRedisClient builds a client whose dial results drive the connection status gauge.
func NewRedisClient(opts RedisOptions) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:            opts.Addr,
		Password:        opts.Password,
		DB:              opts.DB,
		MaxRetries:      opts.MaxRetries,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	})
	client.AddHook(connStatusHook{clientType: "main"})
	return client
}

// Ping checks reachability with bounded retries, used at startup.
func Ping(ctx context.Context, client redis.UniversalClient, retries int, backoff time.Duration) error {
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return nil
		}
		util.Warn("Redis ping attempt %d/%d failed: %v", attempt, retries, err)
		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("redis unreachable after %d attempts: %w", retries, err)
}

type connStatusHook struct {
	clientType string
}

func (h connStatusHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			metrics.StoreConnectionStatus.WithLabelValues(h.clientType).Set(0)
			return nil, err
		}
		metrics.StoreConnectionStatus.WithLabelValues(h.clientType).Set(1)
		return conn, nil
	}
}

func (h connStatusHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (h connStatusHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

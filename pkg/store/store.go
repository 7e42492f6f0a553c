// Package store keeps the bounded, newest-first window of recent messages and
// announces every accepted write on the fan-out channel.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/downfa11-org/go-relay/pkg/fanout"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
)

// Backend is the storage behind a Store. Push must insert at the front and
// trim to capacity atomically, returning the resulting length.
type Backend interface {
	Name() string
	Push(ctx context.Context, msg types.Message, capacity int) (int64, error)
	Range(ctx context.Context, limit int) ([]types.Message, error)
	Len(ctx context.Context) (int64, error)
}

type Store struct {
	backend   Backend
	publisher fanout.Publisher
	capacity  int

	appendMu sync.Mutex
}

// New returns a store over backend. publisher may be nil when nobody listens live.
func New(backend Backend, publisher fanout.Publisher, capacity int) *Store {
	if capacity <= 0 {
		capacity = 100
	}
	return &Store{
		backend:   backend,
		publisher: publisher,
		capacity:  capacity,
	}
}

func (s *Store) Capacity() int { return s.capacity }

// Append writes msg at the front of the window and then publishes it.
// A publish never happens for a write that failed.
func (s *Store) Append(ctx context.Context, msg types.Message) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	start := time.Now()
	size, err := s.backend.Push(ctx, msg, s.capacity)
	s.observe("append", start, err)
	if err != nil {
		return types.NewStoreWriteError("append", err)
	}
	metrics.StoreListSize.Set(float64(size))

	// the write is durable; live viewers still get it if the caller is stopping
	if s.publisher != nil {
		if err := s.publisher.Publish(context.WithoutCancel(ctx), msg); err != nil {
			metrics.StoreOperations.WithLabelValues(s.backend.Name(), "publish", "error").Inc()
			return fmt.Errorf("%w: %v", types.ErrPublish, err)
		}
		metrics.StoreOperations.WithLabelValues(s.backend.Name(), "publish", "success").Inc()
	}
	return nil
}

// Recent returns up to limit messages, newest first. A limit outside 1..capacity means capacity.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.Message, error) {
	if limit <= 0 || limit > s.capacity {
		limit = s.capacity
	}

	start := time.Now()
	msgs, err := s.backend.Range(ctx, limit)
	s.observe("recent", start, err)
	if err != nil {
		return nil, types.NewStoreReadError("recent", err)
	}
	return msgs, nil
}

func (s *Store) Size(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.backend.Len(ctx)
	s.observe("size", start, err)
	if err != nil {
		return 0, types.NewStoreReadError("size", err)
	}
	return n, nil
}

func (s *Store) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperations.WithLabelValues(s.backend.Name(), op, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(s.backend.Name(), op).Observe(time.Since(start).Seconds())
}

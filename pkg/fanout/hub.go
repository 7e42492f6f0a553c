package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
)

const backendMemory = "memory"

// Hub is the in-process Channel used when the relay runs as a single instance.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	opts   Options
	closed bool
}

func NewHub(opts Options) *Hub {
	return &Hub{
		subs: make(map[uint64]*Subscription),
		opts: opts.normalized(),
	}
}

func (h *Hub) Publish(ctx context.Context, msg types.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		metrics.FanoutPublished.WithLabelValues(backendMemory, "error").Inc()
		return fmt.Errorf("hub closed")
	}
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(msg)
	}
	metrics.FanoutPublished.WithLabelValues(backendMemory, "success").Inc()
	return nil
}

func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, types.ErrSubscriptionClosed
	}

	h.nextID++
	id := h.nextID
	sub := newSubscription(h.opts, func() { h.remove(id) })
	h.subs[id] = sub
	metrics.FanoutActiveSubscriptions.WithLabelValues(backendMemory).Inc()
	return sub, nil
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; ok {
		delete(h.subs, id)
		metrics.FanoutActiveSubscriptions.WithLabelValues(backendMemory).Dec()
	}
}

// Count returns the number of registered subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close terminates every subscription and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(types.ErrSubscriptionClosed)
	}
	return nil
}

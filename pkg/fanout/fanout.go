// Package fanout broadcasts stored messages to every live subscriber.
//
// Each subscription only observes messages published after it registered and
// there is no replay. Publish never blocks on a subscriber: every subscription
// owns a bounded buffer and an OverflowPolicy decides what happens when it is full.
package fanout

import (
	"context"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
)

type Publisher interface {
	Publish(ctx context.Context, msg types.Message) error
}

type Subscriber interface {
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Channel is a topic-style publish/subscribe primitive.
type Channel interface {
	Publisher
	Subscriber
	Close() error
}

// OverflowPolicy defines how a full subscriber buffer is handled.
type OverflowPolicy int

const (
	OverflowDisconnect OverflowPolicy = iota // default
	OverflowDropOldest
	OverflowDropNewest
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDisconnect:
		return "disconnect"
	case OverflowDropOldest:
		return "drop-oldest"
	case OverflowDropNewest:
		return "drop-newest"
	default:
		return "unknown"
	}
}

func ParseOverflowPolicy(s string) OverflowPolicy {
	switch s {
	case "drop-oldest":
		return OverflowDropOldest
	case "drop-newest":
		return OverflowDropNewest
	default:
		return OverflowDisconnect
	}
}

type Options struct {
	BufferSize int
	Overflow   OverflowPolicy
}

func (o Options) normalized() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	return o
}

// Subscription is one registered reader. Read events from C until Done is closed.
type Subscription struct {
	ch     chan types.Message
	done   chan struct{}
	policy OverflowPolicy

	mu      sync.Mutex
	closed  bool
	err     error
	release func()

	closeOnce sync.Once
}

func newSubscription(opts Options, release func()) *Subscription {
	opts = opts.normalized()
	return &Subscription{
		ch:      make(chan types.Message, opts.BufferSize),
		done:    make(chan struct{}),
		policy:  opts.Overflow,
		release: release,
	}
}

func (s *Subscription) C() <-chan types.Message { return s.ch }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended; nil after a plain Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.terminate(nil)
	return nil
}

func (s *Subscription) terminate(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = err
		release := s.release
		close(s.done)
		s.mu.Unlock()

		if release != nil {
			release()
		}
	})
}

func (s *Subscription) setRelease(release func()) {
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.release = release
	}
	s.mu.Unlock()

	if closed {
		release()
	}
}

// deliver enqueues msg without blocking.
func (s *Subscription) deliver(msg types.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	select {
	case s.ch <- msg:
		s.mu.Unlock()
		return
	default:
	}

	metrics.FanoutOverflows.WithLabelValues(s.policy.String()).Inc()
	switch s.policy {
	case OverflowDropNewest:
		s.mu.Unlock()
	case OverflowDropOldest:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- msg:
		default:
		}
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.terminate(types.ErrSlowSubscriber)
	}
}

package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
	"github.com/nats-io/nats.go"
)

const backendNATS = "nats"

// NATSChannel fans messages out on a core NATS subject. The connection is borrowed.
type NATSChannel struct {
	nc      *nats.Conn
	subject string
	opts    Options

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewNATSChannel(nc *nats.Conn, subject string, opts Options) *NATSChannel {
	return &NATSChannel{
		nc:      nc,
		subject: subject,
		opts:    opts.normalized(),
		subs:    make(map[*Subscription]struct{}),
	}
}

// DialNATS connects with reconnects enabled and logs connection state changes.
func DialNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				util.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			util.Info("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

func (n *NATSChannel) Publish(ctx context.Context, msg types.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		metrics.FanoutPublished.WithLabelValues(backendNATS, "error").Inc()
		return fmt.Errorf("nats publish %s: %w", n.subject, err)
	}
	metrics.FanoutPublished.WithLabelValues(backendNATS, "success").Inc()
	return nil
}

func (n *NATSChannel) Subscribe(ctx context.Context) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, types.ErrSubscriptionClosed
	}
	n.mu.Unlock()

	sub := newSubscription(n.opts, nil)
	ns, err := n.nc.Subscribe(n.subject, func(m *nats.Msg) {
		msg, err := types.DecodeMessage(m.Data)
		if err != nil {
			util.Warn("Dropping undecodable fan-out payload on %s: %v", n.subject, err)
			return
		}
		sub.deliver(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w: %v", n.subject, types.ErrTransientIO, err)
	}
	// make sure the server registered interest before returning
	if err := n.nc.FlushTimeout(2 * time.Second); err != nil {
		_ = ns.Unsubscribe()
		return nil, fmt.Errorf("nats flush %s: %w: %v", n.subject, types.ErrTransientIO, err)
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		_ = ns.Unsubscribe()
		return nil, types.ErrSubscriptionClosed
	}
	n.subs[sub] = struct{}{}
	metrics.FanoutActiveSubscriptions.WithLabelValues(backendNATS).Inc()
	n.mu.Unlock()

	sub.setRelease(func() {
		_ = ns.Unsubscribe()
		n.mu.Lock()
		if _, ok := n.subs[sub]; ok {
			delete(n.subs, sub)
			metrics.FanoutActiveSubscriptions.WithLabelValues(backendNATS).Dec()
		}
		n.mu.Unlock()
	})
	return sub, nil
}

func (n *NATSChannel) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := make([]*Subscription, 0, len(n.subs))
	for sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(types.ErrSubscriptionClosed)
	}
	return nil
}

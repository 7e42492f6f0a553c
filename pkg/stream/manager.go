// Package stream multiplexes fan-out events to Server-Sent Events clients.
package stream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/downfa11-org/go-relay/pkg/fanout"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/util"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyConnections = errors.New("too many stream connections")
	ErrRateLimited        = errors.New("stream connection rate exceeded")
	ErrManagerClosed      = errors.New("stream manager closed")
)

type Options struct {
	MaxConnections int
	AcceptRate     float64 // new sessions per second, 0 disables the limiter
	Heartbeat      time.Duration
	WriteTimeout   time.Duration
}

// Session is one connected stream client.
type Session struct {
	ID         string
	RemoteAddr string
	Opened     time.Time
}

type Manager struct {
	subscriber   fanout.Subscriber
	maxConn      int
	limiter      *rate.Limiter
	heartbeat    time.Duration
	writeTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewManager(subscriber fanout.Subscriber, opts Options) *Manager {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 1000
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}

	m := &Manager{
		subscriber:   subscriber,
		maxConn:      opts.MaxConnections,
		heartbeat:    opts.Heartbeat,
		writeTimeout: opts.WriteTimeout,
		sessions:     make(map[string]*Session),
		shutdown:     make(chan struct{}),
	}
	if opts.AcceptRate > 0 {
		burst := int(opts.AcceptRate)
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(opts.AcceptRate), burst)
	}
	return m
}

func (m *Manager) admit(remoteAddr string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if len(m.sessions) >= m.maxConn {
		return nil, fmt.Errorf("%w (max %d)", ErrTooManyConnections, m.maxConn)
	}
	if m.limiter != nil && !m.limiter.Allow() {
		return nil, ErrRateLimited
	}

	s := &Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		Opened:     time.Now(),
	}
	m.sessions[s.ID] = s
	m.wg.Add(1)
	metrics.SSEActiveConnections.Set(float64(len(m.sessions)))
	return s, nil
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	if _, ok := m.sessions[s.ID]; ok {
		delete(m.sessions, s.ID)
		metrics.SSEActiveConnections.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()
	m.wg.Done()
}

func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tells every session to finish and waits for them. New sessions are rejected.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		n := len(m.sessions)
		m.mu.Unlock()

		close(m.shutdown)
		util.Info("Closing %d stream sessions", n)
	})
	m.wg.Wait()
}

// Package server exposes the relay over HTTP: the live stream, the message API,
// lag and health reporting, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/offset"
	"github.com/downfa11-org/go-relay/pkg/stream"
	"github.com/downfa11-org/go-relay/util"
)

type Server struct {
	cfg     *config.Config
	sender  Sender
	recent  RecentReader
	offsets *offset.OffsetManager
	streams *stream.Manager
	now     func() time.Time

	httpSrv *http.Server
	ln      net.Listener
}

func NewServer(cfg *config.Config, sender Sender, recent RecentReader, offsets *offset.OffsetManager, streams *stream.Manager) *Server {
	return &Server{
		cfg:     cfg,
		sender:  sender,
		recent:  recent,
		offsets: offsets,
		streams: streams,
		now:     time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/messages/stream", instrument("/api/messages/stream", s.streams))
	mux.Handle("GET /api/messages", instrument("/api/messages", withGzip(http.HandlerFunc(s.handleRecent))))
	mux.Handle("POST /api/messages", instrument("/api/messages", http.HandlerFunc(s.handleSend)))
	mux.Handle("GET /api/lag", instrument("/api/lag", http.HandlerFunc(s.handleLag)))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start binds the HTTP port and serves in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Error("HTTP server error: %v", err)
		}
	}()
	util.Info("HTTP server listening on %s", ln.Addr())
	return nil
}

func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown closes every stream session before stopping the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.streams.Close()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inProgress := metrics.HTTPRequestsInProgress.WithLabelValues(r.Method, route)
		inProgress.Inc()
		defer inProgress.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ObserveHTTP(r.Method, route, rec.status, time.Since(start))
	})
}

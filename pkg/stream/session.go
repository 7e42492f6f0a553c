package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

var (
	dataPrefix = []byte("data: ")
	frameEnd   = []byte("\n\n")
	keepalive  = []byte(": keepalive\n\n")
)

// ServeHTTP runs one SSE session until the client leaves, the manager closes
// or the subscription ends.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := m.admit(r.RemoteAddr)
	if err != nil {
		metrics.SSEConnections.WithLabelValues("rejected").Inc()
		util.Warn("Rejected stream client %s: %v", r.RemoteAddr, err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer m.release(sess)
	metrics.SSEConnections.WithLabelValues("opened").Inc()
	util.Debug("Stream session %s opened for %s", sess.ID, sess.RemoteAddr)

	reason := "client_closed"
	defer func() {
		metrics.SSEConnections.WithLabelValues("closed").Inc()
		util.Debug("Stream session %s closed (%s) after %s", sess.ID, reason, time.Since(sess.Opened).Truncate(time.Millisecond))
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := &sseWriter{w: w, rc: http.NewResponseController(w), timeout: m.writeTimeout}
	if err := out.data(types.ConnectedEvent{Type: "connected"}); err != nil {
		reason = "write_failed"
		metrics.SSEErrors.WithLabelValues("write").Inc()
		return
	}
	metrics.SSEMessagesSent.WithLabelValues("connected").Inc()

	ctx := r.Context()
	sub, err := m.subscriber.Subscribe(ctx)
	if err != nil {
		reason = "subscribe_failed"
		metrics.SSEErrors.WithLabelValues("subscribe").Inc()
		util.Error("Stream session %s could not subscribe: %v", sess.ID, err)
		return
	}
	defer sub.Close()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			reason = "server_shutdown"
			return
		case <-sub.Done():
			reason = "subscription_ended"
			if err := sub.Err(); err != nil {
				metrics.SSEErrors.WithLabelValues("subscription").Inc()
				util.Warn("Stream session %s subscription ended: %v", sess.ID, err)
			}
			return
		case msg := <-sub.C():
			if err := out.data(msg); err != nil {
				reason = "write_failed"
				metrics.SSEErrors.WithLabelValues("write").Inc()
				return
			}
			metrics.SSEMessagesSent.WithLabelValues("message").Inc()
		case <-ticker.C:
			if err := out.write(keepalive); err != nil {
				reason = "heartbeat_failed"
				metrics.SSEErrors.WithLabelValues("heartbeat").Inc()
				return
			}
			metrics.SSEMessagesSent.WithLabelValues("heartbeat").Inc()
		}
	}
}

type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
}

func (s *sseWriter) data(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	frame := make([]byte, 0, len(dataPrefix)+len(b)+len(frameEnd))
	frame = append(frame, dataPrefix...)
	frame = append(frame, b...)
	frame = append(frame, frameEnd...)
	return s.write(frame)
}

func (s *sseWriter) write(p []byte) error {
	if s.timeout > 0 {
		if err := s.rc.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if _, err := s.w.Write(p); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/downfa11-org/go-relay/util"
)

// Sender appends a message to the log; *producer.Producer implements it.
type Sender interface {
	Send(ctx context.Context, msg types.Message) error
}

// RecentReader serves snapshot reads; *store.Store implements it.
type RecentReader interface {
	Recent(ctx context.Context, limit int) ([]types.Message, error)
}

type sendRequest struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

type lagResponse struct {
	Group      string                    `json:"group"`
	Topic      string                    `json:"topic"`
	TotalLag   int64                     `json:"total_lag"`
	UpdatedAt  *time.Time                `json:"updated_at,omitempty"`
	Partitions []types.PartitionPosition `json:"partitions"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.Author) == "" {
		writeError(w, http.StatusBadRequest, "Content and author are required")
		return
	}

	now := s.now()
	msg := types.Message{
		ID:        util.NewMessageID(now),
		Content:   req.Content,
		Author:    req.Author,
		Timestamp: now.UnixMilli(),
	}
	if err := s.sender.Send(r.Context(), msg); err != nil {
		util.Error("Error sending message: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{Success: true, Message: "Message sent", ID: msg.ID})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.RecentDefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		limit = util.ParseInt(v, limit)
	}

	msgs, err := s.recent.Recent(r.Context(), limit)
	if err != nil {
		util.Error("Error reading recent messages: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to read messages")
		return
	}
	if msgs == nil {
		msgs = []types.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleLag(w http.ResponseWriter, r *http.Request) {
	resp := lagResponse{
		Group:      s.cfg.GroupID,
		Topic:      s.cfg.Topic,
		Partitions: []types.PartitionPosition{},
	}
	if s.offsets != nil {
		resp.Partitions = s.offsets.Snapshot(s.cfg.GroupID, s.cfg.Topic)
		resp.TotalLag = s.offsets.TotalLag(s.cfg.GroupID, s.cfg.Topic)
		if at := s.offsets.UpdatedAt(); !at.IsZero() {
			resp.UpdatedAt = &at
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"stream_sessions": s.streams.ActiveSessions(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Debug("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

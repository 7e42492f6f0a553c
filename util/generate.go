package util

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewMessageID returns a producer-assigned message id: creation millis plus a random suffix.
func NewMessageID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// NewClientID returns a unique client identity derived from prefix.
func NewClientID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Message is a single relayed text message. It is immutable once created and
// identified by ID; redelivery may duplicate it but never changes it.
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp int64  `json:"timestamp"` // epoch millis, producer-assigned
}

func (m Message) String() string {
	return m.Content
}

// Time returns the producer timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Validate checks the fields a producer must set before sending.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMessage)
	}
	if m.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidMessage)
	}
	return nil
}

// Encode serializes the message to its wire form (UTF-8 JSON).
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses the wire form of a message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	if m.ID == "" {
		return Message{}, fmt.Errorf("message without id")
	}
	return m, nil
}

// Record is a single entry of the durable log as seen by the relay.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp int64 // epoch millis, 0 when the log did not carry one
}

// ConnectedEvent is the first event of every stream session.
type ConnectedEvent struct {
	Type string `json:"type"`
}

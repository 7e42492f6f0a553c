package types

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientIO marks broker/store unreachability that the client layer retries.
	ErrTransientIO = errors.New("transient io error")

	ErrInvalidMessage = errors.New("invalid message")
	ErrNotConnected   = errors.New("not connected")

	ErrStoreWrite = errors.New("store write failed")
	ErrStoreRead  = errors.New("store read failed")

	// ErrPublish is returned when the fan-out publish fails after a successful store write.
	ErrPublish = errors.New("fan-out publish failed")

	// ErrSlowSubscriber terminates a subscription whose buffer overflowed.
	ErrSlowSubscriber = errors.New("subscriber cannot keep up")

	ErrSubscriptionClosed = errors.New("subscription closed")
)

// SendError is returned by the producer for any transport or broker failure.
type SendError struct {
	Topic string
	ID    string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message %s to topic %s: %v", e.ID, e.Topic, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// MalformedRecordError describes a log record whose value is not a valid message.
type MalformedRecordError struct {
	Topic     string
	Partition int
	Offset    int64
	Err       error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s/%d@%d: %v", e.Topic, e.Partition, e.Offset, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// StoreError wraps a backing-store transport failure.
// Kind is ErrStoreWrite or ErrStoreRead.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{e.Kind, e.Err} }

func NewStoreWriteError(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrStoreWrite, Err: err}
}

func NewStoreReadError(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrStoreRead, Err: err}
}

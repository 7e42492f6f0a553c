package producer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func newTestProducer(w *fakeWriter) (*Producer, *atomic.Int32) {
	var builds atomic.Int32
	cfg := config.Default()
	cfg.Topic = "board"
	p := NewProducerWithWriter(cfg, func(*config.Config) (Writer, error) {
		builds.Add(1)
		return w, nil
	})
	return p, &builds
}

func TestSendWritesKeyedRecord(t *testing.T) {
	w := &fakeWriter{}
	p, _ := newTestProducer(w)
	defer p.Close()

	msg := types.Message{ID: "m-1", Content: "hi", Author: "bob", Timestamp: 1700000000123}
	require.NoError(t, p.Send(context.Background(), msg))

	require.Len(t, w.msgs, 1)
	rec := w.msgs[0]
	assert.Equal(t, []byte("m-1"), rec.Key)
	assert.Equal(t, int64(1700000000123), rec.Time.UnixMilli())

	decoded, err := types.DecodeMessage(rec.Value)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestSendRejectsInvalidMessageBeforeIO(t *testing.T) {
	w := &fakeWriter{}
	p, builds := newTestProducer(w)

	err := p.Send(context.Background(), types.Message{Content: "no id", Timestamp: 1})
	assert.ErrorIs(t, err, types.ErrInvalidMessage)

	err = p.Send(context.Background(), types.Message{ID: "x", Content: "no ts"})
	assert.ErrorIs(t, err, types.ErrInvalidMessage)

	assert.EqualValues(t, 0, builds.Load())
	assert.False(t, p.Connected())
}

func TestSendFailureReturnsSendError(t *testing.T) {
	cause := errors.New("broker gone")
	w := &fakeWriter{err: cause}
	p, _ := newTestProducer(w)

	err := p.Send(context.Background(), types.Message{ID: "m-2", Content: "x", Timestamp: 1})
	require.Error(t, err)

	var sendErr *types.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "board", sendErr.Topic)
	assert.Equal(t, "m-2", sendErr.ID)
	assert.ErrorIs(t, err, types.ErrTransientIO)
}

func TestConcurrentFirstSendConnectsOnce(t *testing.T) {
	w := &fakeWriter{}
	p, builds := newTestProducer(w)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = p.Send(context.Background(), types.Message{ID: "m", Content: "x", Timestamp: int64(i + 1)})
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, builds.Load())
	assert.Len(t, w.msgs, 16)
}

func TestCloseIdempotentAndReconnects(t *testing.T) {
	w := &fakeWriter{}
	p, builds := newTestProducer(w)

	require.NoError(t, p.Connect())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	assert.False(t, p.Connected())

	require.NoError(t, p.Send(context.Background(), types.Message{ID: "m", Content: "x", Timestamp: 1}))
	assert.EqualValues(t, 2, builds.Load())
	require.NoError(t, p.Close())
}

func TestCompressionCodec(t *testing.T) {
	assert.Equal(t, kafka.Gzip, compressionCodec("gzip"))
	assert.Equal(t, kafka.Snappy, compressionCodec("snappy"))
	assert.Equal(t, kafka.Lz4, compressionCodec("lz4"))
	assert.Equal(t, kafka.Zstd, compressionCodec("zstd"))
	assert.Equal(t, kafka.Compression(0), compressionCodec("none"))
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "timeout", errorType(context.DeadlineExceeded))
	assert.Equal(t, "broker_temporary", errorType(kafka.LeaderNotAvailable))
	assert.Equal(t, "broker", errorType(kafka.TopicAuthorizationFailed))
	assert.Equal(t, "transport", errorType(errors.New("eof")))
}

package consumer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/downfa11-org/go-relay/pkg/config"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	records chan kafka.Message

	mu      sync.Mutex
	commits []kafka.Message
	closed  int
	done    chan struct{}
	once    sync.Once
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		records: make(chan kafka.Message, 64),
		done:    make(chan struct{}),
	}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.done:
		return kafka.Message{}, io.EOF
	case m := <-r.records:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.once.Do(func() { close(r.done) })
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.commits))
	for _, m := range r.commits {
		out = append(out, m.Offset)
	}
	return out
}

// flakyAppender fails the first failures calls with err, then delegates.
type flakyAppender struct {
	next     Appender
	err      error
	failures int32
	calls    atomic.Int32
}

func (a *flakyAppender) Append(ctx context.Context, msg types.Message) error {
	n := a.calls.Add(1)
	if n <= a.failures {
		return a.err
	}
	if a.next == nil {
		return nil
	}
	return a.next.Append(ctx, msg)
}

type fakeAdmin struct {
	partitions []int
	committed  map[int]int64
	hwms       map[int]int64
	err        error
	closed     *atomic.Int32
}

func (a *fakeAdmin) Partitions(context.Context, string) ([]int, error) {
	return a.partitions, a.err
}

func (a *fakeAdmin) CommittedOffsets(context.Context, string, string, []int) (map[int]int64, error) {
	return a.committed, nil
}

func (a *fakeAdmin) HighWaterMarks(context.Context, string, []int) (map[int]int64, error) {
	return a.hwms, nil
}

func (a *fakeAdmin) Close() error {
	if a.closed != nil {
		a.closed.Add(1)
	}
	return nil
}

func okProbe(context.Context, *config.Config) error { return nil }

var errBrokerDown = errors.New("broker down")

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Topic = "board-test"
	cfg.GroupID = "board-test-group"
	cfg.StoreRetryBackoffMS = 1
	cfg.ConnectRetryBackoffMS = 1
	cfg.MaxConnectRetries = 3
	return cfg
}

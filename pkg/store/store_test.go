package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/downfa11-org/go-relay/pkg/fanout"
	"github.com/downfa11-org/go-relay/pkg/metrics"
	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(i int) types.Message {
	return types.Message{
		ID:        fmt.Sprintf("m-%d", i),
		Content:   fmt.Sprintf("hello %d", i),
		Author:    "alice",
		Timestamp: int64(1700000000000 + i),
	}
}

// recordingPublisher remembers what the backend held at publish time.
type recordingPublisher struct {
	mu        sync.Mutex
	backend   Backend
	published []string
	sizes     []int64
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, m types.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, _ := p.backend.Len(ctx)
	p.published = append(p.published, m.ID)
	p.sizes = append(p.sizes, n)
	return p.err
}

type failingBackend struct {
	*MemoryBackend
}

func (f failingBackend) Push(context.Context, types.Message, int) (int64, error) {
	return 0, errors.New("disk on fire")
}

// cancelAfterPush stops the caller right after a successful write.
type cancelAfterPush struct {
	*MemoryBackend
	cancel context.CancelFunc
}

func (c cancelAfterPush) Push(ctx context.Context, m types.Message, capacity int) (int64, error) {
	n, err := c.MemoryBackend.Push(ctx, m, capacity)
	c.cancel()
	return n, err
}

func TestAppendKeepsNewestWithinCapacity(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), nil, 3)

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(ctx, msg(i)))
	}

	got, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m-5", "m-4", "m-3"}, []string{got[0].ID, got[1].ID, got[2].ID})

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)
}

func TestRecentLimit(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), nil, 10)
	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Append(ctx, msg(i)))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m-4", got[0].ID)

	got, err = s.Recent(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestAppendPublishesAfterWrite(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	pub := &recordingPublisher{backend: backend}
	s := New(backend, pub, 100)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Append(ctx, msg(i)))
	}

	assert.Equal(t, []string{"m-1", "m-2", "m-3"}, pub.published)
	// each publish saw its own write already applied
	assert.Equal(t, []int64{1, 2, 3}, pub.sizes)
}

func TestAppendWriteFailureDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	backend := failingBackend{NewMemoryBackend()}
	pub := &recordingPublisher{backend: backend}
	s := New(backend, pub, 100)

	err := s.Append(ctx, msg(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreWrite)

	var storeErr *types.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "append", storeErr.Op)
	assert.Empty(t, pub.published)
}

func TestAppendPublishFailureKeepsWrite(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	pub := &recordingPublisher{backend: backend, err: errors.New("broken pipe")}
	s := New(backend, pub, 100)

	err := s.Append(ctx, msg(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPublish)
	assert.NotErrorIs(t, err, types.ErrStoreWrite)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreListSize))
}

func TestAppendPublishesAfterCallerCancelled(t *testing.T) {
	hub := fanout.NewHub(fanout.Options{BufferSize: 8})
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(cancelAfterPush{NewMemoryBackend(), cancel}, hub, 100)
	require.NoError(t, s.Append(ctx, msg(7)))
	require.Error(t, ctx.Err())

	select {
	case got := <-sub.C():
		assert.Equal(t, "m-7", got.ID)
	default:
		t.Fatal("stored message was not delivered to the live subscriber")
	}
}

func TestAppendWithHubDeliversToSubscribers(t *testing.T) {
	ctx := context.Background()
	hub := fanout.NewHub(fanout.Options{BufferSize: 8})
	defer hub.Close()

	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	s := New(NewMemoryBackend(), hub, 100)
	require.NoError(t, s.Append(ctx, msg(42)))

	got := <-sub.C()
	assert.Equal(t, "m-42", got.ID)
}

func TestConcurrentAppendsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), nil, 50)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = s.Append(ctx, msg(w*100+i))
			}
		}(w)
	}
	wg.Wait()

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 50, size)
}

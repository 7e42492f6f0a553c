package fanout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(i int) types.Message {
	return types.Message{
		ID:        fmt.Sprintf("m-%d", i),
		Content:   fmt.Sprintf("content %d", i),
		Author:    "tester",
		Timestamp: int64(1700000000000 + i),
	}
}

func receive(t *testing.T, sub *Subscription) types.Message {
	t.Helper()
	select {
	case msg := <-sub.C():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
		return types.Message{}
	}
}

func TestHubBroadcastInOrder(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(Options{BufferSize: 16})
	defer hub.Close()

	a, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	b, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count())

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(ctx, testMessage(i)))
	}

	for _, sub := range []*Subscription{a, b} {
		for i := 0; i < 5; i++ {
			assert.Equal(t, testMessage(i).ID, receive(t, sub).ID)
		}
	}
}

func TestHubNoReplay(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(Options{BufferSize: 4})
	defer hub.Close()

	require.NoError(t, hub.Publish(ctx, testMessage(1)))
	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, testMessage(2)))

	assert.Equal(t, "m-2", receive(t, sub).ID)
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected message %s", msg.ID)
	default:
	}
}

func TestHubOverflowDisconnect(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(Options{BufferSize: 1, Overflow: OverflowDisconnect})
	defer hub.Close()

	slow, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	fast, err := hub.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, testMessage(1)))
	assert.Equal(t, "m-1", receive(t, fast).ID)
	require.NoError(t, hub.Publish(ctx, testMessage(2)))

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatalf("slow subscriber was not disconnected")
	}
	assert.ErrorIs(t, slow.Err(), types.ErrSlowSubscriber)
	assert.Equal(t, "m-2", receive(t, fast).ID)
	assert.Equal(t, 1, hub.Count())
}

func TestHubOverflowDropPolicies(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		policy OverflowPolicy
		want   []string
	}{
		{OverflowDropOldest, []string{"m-2", "m-3"}},
		{OverflowDropNewest, []string{"m-1", "m-2"}},
	}

	for _, tc := range cases {
		t.Run(tc.policy.String(), func(t *testing.T) {
			hub := NewHub(Options{BufferSize: 2, Overflow: tc.policy})
			defer hub.Close()

			sub, err := hub.Subscribe(ctx)
			require.NoError(t, err)
			for i := 1; i <= 3; i++ {
				require.NoError(t, hub.Publish(ctx, testMessage(i)))
			}

			assert.Equal(t, tc.want[0], receive(t, sub).ID)
			assert.Equal(t, tc.want[1], receive(t, sub).ID)
			assert.NoError(t, sub.Err())
			assert.Equal(t, 1, hub.Count())
		})
	}
}

func TestSubscriptionCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(Options{})
	defer hub.Close()

	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, hub.Count())
	assert.NoError(t, sub.Err())

	// delivery after close is silently ignored
	require.NoError(t, hub.Publish(ctx, testMessage(1)))
	assert.Len(t, sub.C(), 0)
}

func TestHubCloseTerminatesSubscriptions(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(Options{})

	sub, err := hub.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	<-sub.Done()
	assert.ErrorIs(t, sub.Err(), types.ErrSubscriptionClosed)

	_, err = hub.Subscribe(ctx)
	assert.ErrorIs(t, err, types.ErrSubscriptionClosed)
	assert.Error(t, hub.Publish(ctx, testMessage(1)))
}

func TestParseOverflowPolicy(t *testing.T) {
	assert.Equal(t, OverflowDropOldest, ParseOverflowPolicy("drop-oldest"))
	assert.Equal(t, OverflowDropNewest, ParseOverflowPolicy("drop-newest"))
	assert.Equal(t, OverflowDisconnect, ParseOverflowPolicy("disconnect"))
	assert.Equal(t, OverflowDisconnect, ParseOverflowPolicy("whatever"))
}

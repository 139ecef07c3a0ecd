package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) any {
	t.Helper()
	select {
	case v, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, "Post.insert", "Post.update")
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, 1, hub.Count("Post.insert"))
	assert.ElementsMatch(t, []string{"Post.insert", "Post.update"}, hub.Topics())

	require.NoError(t, hub.Publish(ctx, "Post.insert", map[string]any{"id": 1}))
	require.NoError(t, hub.Publish(ctx, "Post.remove", "ignored"))
	require.NoError(t, hub.Publish(ctx, "Post.update", map[string]any{"id": 2}))

	assert.Equal(t, map[string]any{"id": 1}, receive(t, sub))
	assert.Equal(t, map[string]any{"id": 2}, receive(t, sub))
}

func TestHub_UnsubscribeRunsCleanupFirst(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	var order []string
	sub.Unsubscribe(func() {
		order = append(order, "cleanup")
		select {
		case _, ok := <-sub.C:
			if !ok {
				order = append(order, "released-too-early")
			}
		default:
		}
		assert.Equal(t, 1, hub.Count("topic"))
	})
	order = append(order, "done")

	assert.Equal(t, []string{"cleanup", "done"}, order)
	assert.Equal(t, 0, hub.Count("topic"))
	_, ok := <-sub.C
	assert.False(t, ok)

	calls := 0
	sub.Unsubscribe(func() { calls++ })
	assert.Zero(t, calls, "second unsubscribe is a no-op")
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	hub := NewHub(WithBuffer(1))
	ctx := context.Background()
	sub, err := hub.Subscribe(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, "t", 1))
	require.NoError(t, hub.Publish(ctx, "t", 2))

	assert.Equal(t, 1, receive(t, sub))
	select {
	case v := <-sub.C:
		t.Fatalf("unexpected payload %v", v)
	default:
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	sub, err := hub.Subscribe(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, hub.Close())
	_, ok := <-sub.C
	assert.False(t, ok)

	assert.ErrorIs(t, hub.Publish(ctx, "t", 1), ErrClosed)
	_, err = hub.Subscribe(ctx, "t")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRedisBroker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	broker, err := NewRedisBroker(RedisBrokerConfig{Client: client})
	require.NoError(t, err)
	ctx := context.Background()

	sub, err := broker.Subscribe(ctx, "Post.insert")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, "Post.insert", map[string]any{"id": 7, "title": "hello"}))

	payload := receive(t, sub)
	assert.Equal(t, map[string]any{"id": float64(7), "title": "hello"}, payload)

	cleaned := false
	sub.Unsubscribe(func() { cleaned = true })
	assert.True(t, cleaned)

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed")
	}
}

func TestNewRedisBroker_RequiresClient(t *testing.T) {
	_, err := NewRedisBroker(RedisBrokerConfig{})
	assert.Error(t, err)
}

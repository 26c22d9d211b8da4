package redis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchsync/server/internal/pubsub"
)

func newTestPubSub(t *testing.T) *PubSub {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rc.Close()
	})

	ps := NewPubSub(rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		ps.Close()
	})

	return ps
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	ps := newTestPubSub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ps.Subscribe(ctx, "ABCD"))

	delivered := make(chan *pubsub.Envelope, 1)
	go ps.Run(ctx, func(ctx context.Context, envelope *pubsub.Envelope) {
		delivered <- envelope
	})

	envelope := &pubsub.Envelope{
		RoomId:          "ABCD",
		Type:            "receiveMessage",
		Payload:         json.RawMessage(`{"text":"hello"}`),
		ExcludeMemberId: "alice-id",
	}
	require.NoError(t, ps.Publish(ctx, envelope))

	select {
	case got := <-delivered:
		assert.Equal(t, "ABCD", got.RoomId)
		assert.Equal(t, "receiveMessage", got.Type)
		assert.JSONEq(t, `{"text":"hello"}`, string(got.Payload))
		assert.Equal(t, "alice-id", got.ExcludeMemberId)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope was not delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ps := newTestPubSub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ps.Subscribe(ctx, "ABCD"))
	require.NoError(t, ps.Subscribe(ctx, "WXYZ"))
	require.NoError(t, ps.Unsubscribe(ctx, "ABCD"))

	delivered := make(chan *pubsub.Envelope, 2)
	go ps.Run(ctx, func(ctx context.Context, envelope *pubsub.Envelope) {
		delivered <- envelope
	})

	require.NoError(t, ps.Publish(ctx, &pubsub.Envelope{RoomId: "ABCD", Type: "receiveMessage"}))
	require.NoError(t, ps.Publish(ctx, &pubsub.Envelope{RoomId: "WXYZ", Type: "receiveMessage"}))

	select {
	case got := <-delivered:
		assert.Equal(t, "WXYZ", got.RoomId, "only the still-subscribed room may deliver")
	case <-time.After(2 * time.Second):
		t.Fatal("envelope was not delivered")
	}

	select {
	case got := <-delivered:
		t.Fatalf("unexpected extra delivery for room %s", got.RoomId)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishToRoomWithoutSubscribersIsQuiet(t *testing.T) {
	ps := newTestPubSub(t)

	assert.NoError(t, ps.Publish(context.Background(), &pubsub.Envelope{RoomId: "EMPTY", Type: "alive"}))
}

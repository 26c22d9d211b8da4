package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/couchsync/server/internal/pubsub"
)

// DeliverFunc receives every envelope published to a room this process is
// subscribed to, its own publishes included.
type DeliverFunc func(ctx context.Context, envelope *pubsub.Envelope)

type PubSub struct {
	rc     *redis.Client
	ps     *redis.PubSub
	logger *slog.Logger
}

func NewPubSub(rc *redis.Client, logger *slog.Logger) *PubSub {
	return &PubSub{
		rc:     rc,
		ps:     rc.Subscribe(context.Background()),
		logger: logger,
	}
}

func (p *PubSub) getChannel(roomId string) string {
	return "room:" + roomId + ":events"
}

func (p *PubSub) Publish(ctx context.Context, envelope *pubsub.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	// at most one attempt per event; delivery is best-effort
	if err := p.rc.Publish(ctx, p.getChannel(envelope.RoomId), data).Err(); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}

	return nil
}

func (p *PubSub) Subscribe(ctx context.Context, roomId string) error {
	if err := p.ps.Subscribe(ctx, p.getChannel(roomId)); err != nil {
		return fmt.Errorf("failed to subscribe to room channel: %w", err)
	}

	return nil
}

func (p *PubSub) Unsubscribe(ctx context.Context, roomId string) error {
	if err := p.ps.Unsubscribe(ctx, p.getChannel(roomId)); err != nil {
		return fmt.Errorf("failed to unsubscribe from room channel: %w", err)
	}

	return nil
}

// Run consumes subscribed messages until the context is cancelled or the
// subscription is closed, handing each envelope to deliver.
func (p *PubSub) Run(ctx context.Context, deliver DeliverFunc) {
	ch := p.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var envelope pubsub.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				p.logger.WarnContext(ctx, "failed to unmarshal envelope", "error", err, "channel", msg.Channel)
				continue
			}

			deliver(ctx, &envelope)
		}
	}
}

func (p *PubSub) Close() error {
	return p.ps.Close()
}

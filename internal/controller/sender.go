package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/couchsync/server/internal/pubsub"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// publish sends a room event through the fan-out transport. Delivery to
// local connections happens in DeliverEnvelope like on every other process,
// so there is a single delivery path.
func (c controller) publish(ctx context.Context, roomId, msgType string, payload any, excludeMemberId, toMemberId string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := c.publisher.Publish(ctx, &pubsub.Envelope{
		RoomId:          roomId,
		Type:            msgType,
		Payload:         data,
		ExcludeMemberId: excludeMemberId,
		ToMemberId:      toMemberId,
	}); err != nil {
		// at most one attempt; the event is lost for this room
		c.logger.ErrorContext(ctx, "failed to publish", "error", err, "room_id", roomId, "type", msgType)
		return err
	}

	return nil
}

func (c controller) broadcast(ctx context.Context, roomId, msgType string, payload any) error {
	return c.publish(ctx, roomId, msgType, payload, "", "")
}

// DeliverEnvelope writes a fan-out envelope to every member of the room
// connected to this process, honoring the envelope's exclude/to filters.
// Wired as the subscriber callback in app.Run.
func (c *controller) DeliverEnvelope(ctx context.Context, envelope *pubsub.Envelope) {
	receivers := c.roomService.GetLocalReceivers(ctx, envelope.RoomId)

	out := Output{
		Type:    envelope.Type,
		Payload: json.RawMessage(envelope.Payload),
	}

	for _, receiver := range receivers {
		if envelope.ToMemberId != "" && receiver.MemberId != envelope.ToMemberId {
			continue
		}
		if envelope.ExcludeMemberId != "" && receiver.MemberId == envelope.ExcludeMemberId {
			continue
		}

		if err := receiver.Conn.WriteJSON(&out); err != nil {
			c.logger.WarnContext(ctx, "failed to deliver envelope",
				"error", err,
				"room_id", envelope.RoomId,
				"member_id", receiver.MemberId,
				"type", envelope.Type,
			)
		}
	}
}

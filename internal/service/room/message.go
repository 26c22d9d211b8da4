package room

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

type SendMessageParams struct {
	RoomId    string
	SenderId  string
	Username  string
	MessageId string
	Text      string
	Timestamp int64
}

type SendMessageResponse struct {
	Message ChatMessage
}

// SendMessage annotates a chat message with the sender's display name and
// hands it back for broadcast. Messages are transient; nothing is persisted
// and delivery is best effort. The sender receives its own message through
// the same broadcast so every client renders from one path.
func (s service) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	if err := s.requireMembership(params.RoomId, params.SenderId); err != nil {
		return SendMessageResponse{}, err
	}

	messageId := params.MessageId
	if messageId == "" {
		messageId = ulid.Make().String()
	}

	timestamp := params.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	return SendMessageResponse{
		Message: ChatMessage{
			Id:        messageId,
			User:      params.Username,
			Text:      params.Text,
			Timestamp: timestamp,
		},
	}, nil
}

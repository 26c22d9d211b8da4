package controller

import (
	"context"
	"errors"

	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/validator"
	"github.com/couchsync/server/pkg/wsrouter"
)

const (
	codeForbidden   = "FORBIDDEN"
	codeNotFound    = "NOT_FOUND"
	codeValidation  = "VALIDATION_ERROR"
	codeRoomFull    = "ROOM_FULL"
	codePersistence = "PERSISTENCE_ERROR"
	codeInternal    = "INTERNAL_ERROR"
)

type errorPayload struct {
	Code    string                      `json:"code"`
	Message string                      `json:"message"`
	Details []validator.ValidationError `json:"details,omitempty"`
}

// validationError carries field-level details from payload validation up to
// the router's error handler.
type validationError struct {
	details []validator.ValidationError
}

func (e validationError) Error() string {
	return "validation error"
}

func (c controller) errorPayloadFor(err error) errorPayload {
	var valErr validationError
	switch {
	case errors.As(err, &valErr):
		return errorPayload{Code: codeValidation, Message: "invalid payload", Details: valErr.details}
	case errors.Is(err, wsrouter.ErrInvalidPayload), errors.Is(err, wsrouter.ErrUnknownMessageType):
		return errorPayload{Code: codeValidation, Message: err.Error()}
	case errors.Is(err, room.ErrNotRoomMember):
		return errorPayload{Code: codeForbidden, Message: "not a member of the room"}
	case errors.Is(err, room.ErrRoomNotFound):
		return errorPayload{Code: codeNotFound, Message: "room not found"}
	case errors.Is(err, room.ErrAlreadyInRoom):
		return errorPayload{Code: codeValidation, Message: "already in a room"}
	case errors.Is(err, room.ErrRoomFull):
		return errorPayload{Code: codeRoomFull, Message: "room is full"}
	default:
		return errorPayload{Code: codeInternal, Message: "internal error"}
	}
}

// handleWSError surfaces a handler failure to the offending connection only.
// Other members of the room never see it.
func (c controller) handleWSError(ctx context.Context, conn wsrouter.Conn, err error) {
	c.logger.InfoContext(ctx, "websocket handler error", "error", err)

	if writeErr := conn.WriteJSON(&Output{
		Type:    "error",
		Payload: c.errorPayloadFor(err),
	}); writeErr != nil {
		c.logger.WarnContext(ctx, "failed to write error", "error", writeErr)
	}
}

// writePartialFailure tells the sender a persistence write failed while the
// live operation proceeded.
func (c controller) writePartialFailure(ctx context.Context, conn wsrouter.Conn) {
	if err := conn.WriteJSON(&Output{
		Type: "error",
		Payload: errorPayload{
			Code:    codePersistence,
			Message: "operation applied to the live session but could not be persisted",
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write error", "error", err)
	}
}

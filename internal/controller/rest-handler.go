package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/rest"
)

type guestTokenRequest struct {
	Username string `json:"username" validate:"required,max=24"`
}

type guestTokenResponse struct {
	Token  string `json:"token"`
	UserId string `json:"user_id"`
}

func (c controller) guestToken(w http.ResponseWriter, r *http.Request) {
	var req guestTokenRequest

	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	issueResp, err := c.roomService.IssueGuestToken(r.Context(), &room.IssueGuestTokenParams{
		Username: req.Username,
	})
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to issue guest token", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": guestTokenResponse{
		Token:  issueResp.Token,
		UserId: issueResp.UserId,
	}})
}

type createRoomRequest struct {
	Code string `json:"code" validate:"omitempty,min=4,max=64,alphanum"`
	Name string `json:"name" validate:"omitempty,max=64"`
}

type createRoomResponse struct {
	RoomId string `json:"room_id"`
	Name   string `json:"name"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest

	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	createResp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		Code:    req.Code,
		Name:    req.Name,
		OwnerId: c.getMemberIdFromCtx(r.Context()),
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomAlreadyExists) {
			rest.WriteJSON(w, http.StatusConflict, rest.Envelope{"error": "room already exists"})
			return
		}

		c.logger.ErrorContext(r.Context(), "failed to create room", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResponse{
		RoomId: createResp.RoomId,
		Name:   createResp.Name,
	}})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		return
	}

	snapshot, err := c.roomService.GetRoomSnapshot(r.Context(), roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
			return
		}

		c.logger.ErrorContext(r.Context(), "failed to get room", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": snapshot})
}

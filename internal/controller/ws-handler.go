package controller

import (
	"context"
	"net/http"

	"github.com/couchsync/server/internal/repository/session"
	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/wsrouter"
)

// serveWS upgrades an authenticated connection and runs its message loop.
// The gatekeeper middleware has already resolved the identity; a connection
// without one never gets here.
func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	memberId := c.getMemberIdFromCtx(r.Context())
	username := c.getUsernameFromCtx(r.Context())

	wsConn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	conn := session.NewConn(wsConn)

	if err := c.roomService.ConnectMember(r.Context(), &room.ConnectMemberParams{
		Conn:     conn,
		MemberId: memberId,
	}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to connect member", "error", err)
		conn.WriteJSON(&Output{
			Type:    "error",
			Payload: errorPayload{Code: codeValidation, Message: "member already connected"},
		})
		conn.Close()
		return
	}
	defer c.disconnect(r.Context(), memberId, username)

	if err := c.wsRouter.ServeConn(r.Context(), conn); err != nil {
		c.logger.InfoContext(r.Context(), "connection closed", "error", err)
	}
}

// disconnect handles the implicit leave when a connection drops without an
// explicit leaveRoom.
func (c *controller) disconnect(ctx context.Context, memberId, username string) {
	resp, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		MemberId: memberId,
		Username: username,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		return
	}

	if !resp.WasInRoom {
		return
	}

	c.broadcast(ctx, resp.RoomId, "roomUsers", roomUsersPayload{Members: resp.Members})
	c.broadcast(ctx, resp.RoomId, "receiveMessage", resp.Notice)

	if resp.UnsubscribeRoom {
		if err := c.publisher.Unsubscribe(ctx, resp.RoomId); err != nil {
			c.logger.WarnContext(ctx, "failed to unsubscribe", "error", err, "room_id", resp.RoomId)
		}
	}
}

func (c controller) validateInput(input any) error {
	if details, ok := c.validate.Validate(input); !ok {
		return validationError{details: details}
	}

	return nil
}

type roomUsersPayload struct {
	Members []room.Member `json:"members"`
}

type joinedRoomPayload struct {
	RoomId  string              `json:"roomId"`
	Name    string              `json:"name"`
	Members []room.Member       `json:"members"`
	Player  *room.PlaybackState `json:"player"`
}

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ wsrouter.Conn, _ EmptyInput) error {
	return nil
}

type JoinRoomInput struct {
	RoomId string `json:"roomId" validate:"required,min=1,max=64"`
}

func (c controller) handleJoinRoom(ctx context.Context, conn wsrouter.Conn, input JoinRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)
	username := c.getUsernameFromCtx(ctx)

	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomId:   input.RoomId,
		MemberId: memberId,
		Username: username,
	})
	if err != nil {
		return err
	}

	if joinRoomResp.SubscribeRoom {
		if err := c.publisher.Subscribe(ctx, input.RoomId); err != nil {
			c.logger.ErrorContext(ctx, "failed to subscribe", "error", err, "room_id", input.RoomId)
		}
	}

	if err := conn.WriteJSON(&Output{
		Type: "joinedRoom",
		Payload: joinedRoomPayload{
			RoomId:  joinRoomResp.RoomId,
			Name:    joinRoomResp.RoomName,
			Members: joinRoomResp.Members,
			Player:  joinRoomResp.Player,
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write joined room", "error", err)
	}

	// re-broadcast even on an idempotent re-join so the client can resync
	c.broadcast(ctx, input.RoomId, "roomUsers", roomUsersPayload{Members: joinRoomResp.Members})

	if !joinRoomResp.AlreadyMember {
		c.broadcast(ctx, input.RoomId, "receiveMessage", joinRoomResp.Notice)
	}

	if joinRoomResp.PersistFailed {
		c.writePartialFailure(ctx, conn)
	}

	return nil
}

type LeaveRoomInput struct {
	RoomId string `json:"roomId" validate:"required,min=1,max=64"`
}

func (c controller) handleLeaveRoom(ctx context.Context, conn wsrouter.Conn, input LeaveRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)
	username := c.getUsernameFromCtx(ctx)

	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		RoomId:   input.RoomId,
		MemberId: memberId,
		Username: username,
	})
	if err != nil {
		return err
	}

	c.publish(ctx, input.RoomId, "roomUsers", roomUsersPayload{Members: leaveRoomResp.Members}, memberId, "")
	c.publish(ctx, input.RoomId, "receiveMessage", leaveRoomResp.Notice, memberId, "")

	if leaveRoomResp.UnsubscribeRoom {
		if err := c.publisher.Unsubscribe(ctx, input.RoomId); err != nil {
			c.logger.WarnContext(ctx, "failed to unsubscribe", "error", err, "room_id", input.RoomId)
		}
	}

	if leaveRoomResp.PersistFailed {
		c.writePartialFailure(ctx, conn)
	}

	return nil
}

type SendMessageInput struct {
	RoomId  string `json:"roomId" validate:"required,min=1,max=64"`
	Message struct {
		Id        string `json:"id" validate:"max=64"`
		Text      string `json:"text" validate:"required,max=2000"`
		Timestamp int64  `json:"timestamp"`
	} `json:"message"`
}

func (c controller) handleSendMessage(ctx context.Context, conn wsrouter.Conn, input SendMessageInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)
	username := c.getUsernameFromCtx(ctx)

	sendMessageResp, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		RoomId:    input.RoomId,
		SenderId:  memberId,
		Username:  username,
		MessageId: input.Message.Id,
		Text:      input.Message.Text,
		Timestamp: input.Message.Timestamp,
	})
	if err != nil {
		return err
	}

	// sender included: every client renders from the same broadcast
	return c.broadcast(ctx, input.RoomId, "receiveMessage", sendMessageResp.Message)
}

type SelectMediaInput struct {
	RoomId   string `json:"roomId" validate:"required,min=1,max=64"`
	MediaRef string `json:"mediaRef" validate:"required,max=2048"`
}

type mediaSelectedPayload struct {
	MediaRef string `json:"mediaRef"`
}

func (c controller) handleSelectMedia(ctx context.Context, conn wsrouter.Conn, input SelectMediaInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)

	selectMediaResp, err := c.roomService.SelectMedia(ctx, &room.SelectMediaParams{
		RoomId:   input.RoomId,
		SenderId: memberId,
		MediaRef: input.MediaRef,
	})
	if err != nil {
		return err
	}

	if err := c.broadcast(ctx, input.RoomId, "video-selected", mediaSelectedPayload{
		MediaRef: input.MediaRef,
	}); err != nil {
		return err
	}

	if selectMediaResp.PersistFailed {
		c.writePartialFailure(ctx, conn)
	}

	return nil
}

type VidStateInput struct {
	RoomId    string  `json:"roomId" validate:"required,min=1,max=64"`
	IsPlaying bool    `json:"isPlaying"`
	MediaRef  string  `json:"mediaRef" validate:"required,max=2048"`
	Position  float64 `json:"position" validate:"gte=0"`
	Speed     float64 `json:"speed" validate:"omitempty,gt=0,lte=4"`
}

func (c controller) handleVidState(ctx context.Context, conn wsrouter.Conn, input VidStateInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)

	updateResp, err := c.roomService.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{
		RoomId:    input.RoomId,
		SenderId:  memberId,
		IsPlaying: input.IsPlaying,
		MediaRef:  input.MediaRef,
		Position:  input.Position,
		Speed:     input.Speed,
	})
	if err != nil {
		return err
	}

	// sender excluded; it already has this state
	if err := c.publish(ctx, input.RoomId, "vid-state", updateResp.Player, memberId, ""); err != nil {
		return err
	}

	if updateResp.PersistFailed {
		c.writePartialFailure(ctx, conn)
	}

	return nil
}

type SeekInput struct {
	RoomId      string  `json:"roomId" validate:"required,min=1,max=64"`
	NewPosition float64 `json:"newPosition" validate:"gte=0"`
	MediaRef    string  `json:"mediaRef" validate:"required,max=2048"`
}

type seekPayload struct {
	NewPosition float64 `json:"newPosition"`
	MediaRef    string  `json:"mediaRef"`
}

func (c controller) handleSeek(ctx context.Context, conn wsrouter.Conn, input SeekInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)

	seekResp, err := c.roomService.Seek(ctx, &room.SeekParams{
		RoomId:   input.RoomId,
		SenderId: memberId,
		Position: input.NewPosition,
		MediaRef: input.MediaRef,
	})
	if err != nil {
		return err
	}

	if err := c.publish(ctx, input.RoomId, "progress-bar-clicked", seekPayload{
		NewPosition: seekResp.Position,
		MediaRef:    seekResp.MediaRef,
	}, memberId, ""); err != nil {
		return err
	}

	if seekResp.PersistFailed {
		c.writePartialFailure(ctx, conn)
	}

	return nil
}

type SpeedChangeInput struct {
	RoomId string  `json:"roomId" validate:"required,min=1,max=64"`
	Speed  float64 `json:"speed" validate:"required,gt=0,lte=4"`
}

type speedChangedPayload struct {
	Speed float64 `json:"speed"`
}

func (c controller) handleSpeedChange(ctx context.Context, conn wsrouter.Conn, input SpeedChangeInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)

	changeSpeedResp, err := c.roomService.ChangeSpeed(ctx, &room.ChangeSpeedParams{
		RoomId:   input.RoomId,
		SenderId: memberId,
		Speed:    input.Speed,
	})
	if err != nil {
		return err
	}

	if err := c.publish(ctx, input.RoomId, "playback-speed-changed", speedChangedPayload{
		Speed: changeSpeedResp.Speed,
	}, memberId, ""); err != nil {
		return err
	}

	if changeSpeedResp.PersistFailed {
		c.writePartialFailure(ctx, conn)
	}

	return nil
}

type GetStateInput struct {
	RoomId string `json:"roomId" validate:"required,min=1,max=64"`
}

// handleGetState answers directly to the requester with the stored playback
// state, the late-joiner convergence path.
func (c controller) handleGetState(ctx context.Context, conn wsrouter.Conn, input GetStateInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)

	getStateResp, err := c.roomService.GetPlaybackState(ctx, &room.GetPlaybackStateParams{
		RoomId:   input.RoomId,
		SenderId: memberId,
	})
	if err != nil {
		return err
	}

	return conn.WriteJSON(&Output{
		Type:    "vid-state",
		Payload: getStateResp.Player,
	})
}

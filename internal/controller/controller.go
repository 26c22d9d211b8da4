package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/pubsub"
	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/validator"
	"github.com/couchsync/server/pkg/wsrouter"
)

type iRoomService interface {
	IssueGuestToken(context.Context, *room.IssueGuestTokenParams) (room.IssueGuestTokenResponse, error)
	ParseToken(string) (*room.Claims, error)
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	GetRoomSnapshot(context.Context, string) (room.RoomSnapshot, error)
	ConnectMember(context.Context, *room.ConnectMemberParams) error
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	SendMessage(context.Context, *room.SendMessageParams) (room.SendMessageResponse, error)
	SelectMedia(context.Context, *room.SelectMediaParams) (room.SelectMediaResponse, error)
	UpdatePlaybackState(context.Context, *room.UpdatePlaybackStateParams) (room.UpdatePlaybackStateResponse, error)
	Seek(context.Context, *room.SeekParams) (room.SeekResponse, error)
	ChangeSpeed(context.Context, *room.ChangeSpeedParams) (room.ChangeSpeedResponse, error)
	GetPlaybackState(context.Context, *room.GetPlaybackStateParams) (room.GetPlaybackStateResponse, error)
	GetLocalReceivers(context.Context, string) []room.Receiver
}

type iPublisher interface {
	Publish(context.Context, *pubsub.Envelope) error
	Subscribe(ctx context.Context, roomId string) error
	Unsubscribe(ctx context.Context, roomId string) error
}

type Config struct {
	OpTimeout time.Duration
}

type controller struct {
	roomService iRoomService
	publisher   iPublisher
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsRouter    *wsrouter.WSRouter
	logger      *slog.Logger
	opTimeout   time.Duration
}

func NewController(roomService iRoomService, publisher iPublisher, cfg *Config, logger *slog.Logger) *controller {
	c := &controller{
		roomService: roomService,
		publisher:   publisher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate:  validator.NewValidator(),
		logger:    logger,
		opTimeout: cfg.OpTimeout,
	}
	c.wsRouter = c.getWSRouter()

	return c
}

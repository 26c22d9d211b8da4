package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchsync/server/internal/repository/room"
	"github.com/couchsync/server/internal/repository/session"
	"github.com/couchsync/server/pkg/randstr"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyInRoom     = errors.New("already in a room")
	ErrNotRoomMember     = errors.New("not a member of the room")
	ErrInvalidToken      = errors.New("invalid token")
)

type iRoomRepo interface {
	// room
	CreateRoom(context.Context, *room.CreateRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	RoomExists(context.Context, string) (bool, error)
	// member
	SetMember(context.Context, *room.SetMemberParams) error
	RemoveMember(context.Context, *room.RemoveMemberParams) error
	GetMemberIds(context.Context, string) ([]string, error)
	GetMember(context.Context, *room.GetMemberParams) (room.Member, error)
	IsMember(context.Context, *room.GetMemberParams) (bool, error)
	// player
	SetPlayer(context.Context, *room.SetPlayerParams) error
	GetPlayer(context.Context, string) (room.Player, error)
	UpdatePlayerSeek(context.Context, *room.UpdatePlayerSeekParams) error
	UpdatePlayerSpeed(context.Context, *room.UpdatePlayerSpeedParams) error
}

type iSessionRepo interface {
	AddConn(conn *session.Conn, memberId string) error
	RemoveConn(memberId string) (*session.Conn, error)
	GetConn(memberId string) (*session.Conn, error)
	AddMemberToRoom(roomId, memberId string) (added, opened bool)
	RemoveMemberFromRoom(roomId, memberId string) (removed, closed bool)
	GetMemberRoomId(memberId string) (string, error)
	GetRoomMemberIds(roomId string) []string
	IsMemberInRoom(roomId, memberId string) bool
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	Secret          string
	TokenTTL        time.Duration
	MembersLimit    int
	AutoCreateRooms bool
}

type service struct {
	roomRepo        iRoomRepo
	sessionRepo     iSessionRepo
	generator       iGenerator
	logger          *slog.Logger
	secret          []byte
	tokenTTL        time.Duration
	membersLimit    int
	autoCreateRooms bool
}

func NewService(roomRepo iRoomRepo, sessionRepo iSessionRepo, cfg *Config, logger *slog.Logger) *service {
	s := service{
		roomRepo:        roomRepo,
		sessionRepo:     sessionRepo,
		logger:          logger,
		secret:          []byte(cfg.Secret),
		tokenTTL:        cfg.TokenTTL,
		membersLimit:    cfg.MembersLimit,
		autoCreateRooms: cfg.AutoCreateRooms,
	}

	letterBytes := []byte("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

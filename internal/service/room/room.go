package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchsync/server/internal/repository/room"
	"github.com/couchsync/server/internal/repository/session"
)

const roomCodeLength = 6

type CreateRoomParams struct {
	Code    string
	Name    string
	OwnerId string
}

type CreateRoomResponse struct {
	RoomId string
	Name   string
}

// CreateRoom explicitly creates a persisted room. Joining can also create
// rooms implicitly when auto-create is enabled; this is the explicit path.
func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomId := params.Code
	if roomId == "" {
		roomId = s.generator.GenerateRandomString(roomCodeLength)
	}

	name := params.Name
	if name == "" {
		name = roomId
	}

	if err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
		RoomId:    roomId,
		Name:      name,
		OwnerId:   params.OwnerId,
		CreatedAt: time.Now().Unix(),
	}); err != nil {
		if errors.Is(err, room.ErrRoomAlreadyExists) {
			return CreateRoomResponse{}, ErrRoomAlreadyExists
		}
		return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
	}

	return CreateRoomResponse{
		RoomId: roomId,
		Name:   name,
	}, nil
}

func (s service) GetRoomSnapshot(ctx context.Context, roomId string) (RoomSnapshot, error) {
	persisted, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return RoomSnapshot{}, ErrRoomNotFound
		}
		return RoomSnapshot{}, fmt.Errorf("failed to get room: %w", err)
	}

	members, err := s.getMembers(ctx, roomId)
	if err != nil {
		return RoomSnapshot{}, fmt.Errorf("failed to get members: %w", err)
	}

	player, err := s.getPlayer(ctx, roomId)
	if err != nil {
		return RoomSnapshot{}, fmt.Errorf("failed to get player: %w", err)
	}

	return RoomSnapshot{
		RoomId:  roomId,
		Name:    persisted.Name,
		Members: members,
		Player:  player,
	}, nil
}

type ConnectMemberParams struct {
	Conn     *session.Conn
	MemberId string
}

func (s service) ConnectMember(ctx context.Context, params *ConnectMemberParams) error {
	if err := s.sessionRepo.AddConn(params.Conn, params.MemberId); err != nil {
		s.logger.InfoContext(ctx, "failed to connect member", "error", err)
		return err
	}

	return nil
}

type JoinRoomParams struct {
	RoomId   string
	MemberId string
	Username string
}

type JoinRoomResponse struct {
	RoomId        string
	RoomName      string
	JoinedMember  Member
	Members       []Member
	Player        *PlaybackState
	Notice        ChatMessage
	AlreadyMember bool
	SubscribeRoom bool
	PersistFailed bool
}

// JoinRoom attaches the member to the room's live set and persists the
// membership. A failed persistence write does not roll back the live join;
// it is reported so the caller can surface partial success.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if currentRoomId, err := s.sessionRepo.GetMemberRoomId(params.MemberId); err == nil && currentRoomId != params.RoomId {
		return JoinRoomResponse{}, ErrAlreadyInRoom
	}

	exists, err := s.roomRepo.RoomExists(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to check room existence: %w", err)
	}

	roomName := params.RoomId
	if !exists {
		if !s.autoCreateRooms {
			return JoinRoomResponse{}, ErrRoomNotFound
		}

		if err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
			RoomId:    params.RoomId,
			Name:      params.RoomId,
			OwnerId:   params.MemberId,
			CreatedAt: time.Now().Unix(),
		}); err != nil && !errors.Is(err, room.ErrRoomAlreadyExists) {
			return JoinRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
		}
	} else {
		persisted, err := s.roomRepo.GetRoom(ctx, params.RoomId)
		if err == nil {
			roomName = persisted.Name
		}
	}

	persistedMember, err := s.roomRepo.IsMember(ctx, &room.GetMemberParams{
		MemberId: params.MemberId,
		RoomId:   params.RoomId,
	})
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to check membership: %w", err)
	}

	if !persistedMember && s.membersLimit > 0 {
		memberIds, err := s.roomRepo.GetMemberIds(ctx, params.RoomId)
		if err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to get member ids: %w", err)
		}

		if len(memberIds) >= s.membersLimit {
			return JoinRoomResponse{}, ErrRoomFull
		}
	}

	persistFailed := false
	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberId: params.MemberId,
		RoomId:   params.RoomId,
		Username: params.Username,
		JoinedAt: time.Now().Unix(),
	}); err != nil {
		// live join proceeds; availability over strict persisted consistency
		s.logger.ErrorContext(ctx, "failed to persist member", "error", err, "room_id", params.RoomId, "member_id", params.MemberId)
		persistFailed = true
	}

	added, opened := s.sessionRepo.AddMemberToRoom(params.RoomId, params.MemberId)

	members, err := s.getMembers(ctx, params.RoomId)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get member list", "error", err, "room_id", params.RoomId)
		members = nil
	}

	joinedMember := Member{
		Id:       params.MemberId,
		Username: params.Username,
		IsOnline: true,
	}

	if !containsMember(members, params.MemberId) {
		members = append(members, joinedMember)
	}

	player, err := s.getPlayer(ctx, params.RoomId)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get player", "error", err, "room_id", params.RoomId)
	}

	return JoinRoomResponse{
		RoomId:        params.RoomId,
		RoomName:      roomName,
		JoinedMember:  joinedMember,
		Members:       members,
		Player:        player,
		Notice:        s.newSystemMessage(params.Username + " joined the room"),
		AlreadyMember: !added,
		SubscribeRoom: opened,
		PersistFailed: persistFailed,
	}, nil
}

type LeaveRoomParams struct {
	RoomId   string
	MemberId string
	Username string
}

type LeaveRoomResponse struct {
	Members         []Member
	Notice          ChatMessage
	UnsubscribeRoom bool
	PersistFailed   bool
}

func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	if !s.sessionRepo.IsMemberInRoom(params.RoomId, params.MemberId) {
		exists, err := s.roomRepo.RoomExists(ctx, params.RoomId)
		if err != nil {
			return LeaveRoomResponse{}, fmt.Errorf("failed to check room existence: %w", err)
		}

		if !exists {
			return LeaveRoomResponse{}, ErrRoomNotFound
		}
	}

	_, closed := s.sessionRepo.RemoveMemberFromRoom(params.RoomId, params.MemberId)

	persistFailed := false
	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		MemberId: params.MemberId,
		RoomId:   params.RoomId,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist member removal", "error", err, "room_id", params.RoomId, "member_id", params.MemberId)
		persistFailed = true
	}

	members, err := s.getMembers(ctx, params.RoomId)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get member list", "error", err, "room_id", params.RoomId)
		members = nil
	}

	return LeaveRoomResponse{
		Members:         members,
		Notice:          s.newSystemMessage(params.Username + " left the room"),
		UnsubscribeRoom: closed,
		PersistFailed:   persistFailed,
	}, nil
}

type DisconnectMemberParams struct {
	MemberId string
	Username string
}

type DisconnectMemberResponse struct {
	RoomId          string
	WasInRoom       bool
	Members         []Member
	Notice          ChatMessage
	UnsubscribeRoom bool
	PersistFailed   bool
}

// DisconnectMember treats a dropped connection as an implicit leave of the
// room the connection was joined to, best effort.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	if _, err := s.sessionRepo.RemoveConn(params.MemberId); err != nil && !errors.Is(err, session.ErrNotFound) {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove connection: %w", err)
	}

	roomId, err := s.sessionRepo.GetMemberRoomId(params.MemberId)
	if err != nil {
		return DisconnectMemberResponse{}, nil
	}

	leaveResp, err := s.LeaveRoom(ctx, &LeaveRoomParams{
		RoomId:   roomId,
		MemberId: params.MemberId,
		Username: params.Username,
	})
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to leave room on disconnect: %w", err)
	}

	return DisconnectMemberResponse{
		RoomId:          roomId,
		WasInRoom:       true,
		Members:         leaveResp.Members,
		Notice:          leaveResp.Notice,
		UnsubscribeRoom: leaveResp.UnsubscribeRoom,
		PersistFailed:   leaveResp.PersistFailed,
	}, nil
}

func containsMember(members []Member, memberId string) bool {
	for _, m := range members {
		if m.Id == memberId {
			return true
		}
	}

	return false
}

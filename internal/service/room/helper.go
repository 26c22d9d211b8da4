package room

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/couchsync/server/internal/repository/room"
)

// requireMembership rejects events from connections that are not currently
// joined to the room.
func (s service) requireMembership(roomId, memberId string) error {
	if !s.sessionRepo.IsMemberInRoom(roomId, memberId) {
		return ErrNotRoomMember
	}

	return nil
}

// getMembers builds the roster from the persisted member list, so members
// connected to other processes are included. The online flag reflects only
// connections local to this process.
func (s service) getMembers(ctx context.Context, roomId string) ([]Member, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(memberIds))
	for _, memberId := range memberIds {
		member, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{
			MemberId: memberId,
			RoomId:   roomId,
		})
		if err != nil {
			if errors.Is(err, room.ErrMemberNotFound) {
				continue
			}
			return nil, err
		}

		_, connErr := s.sessionRepo.GetConn(memberId)

		members = append(members, Member{
			Id:       memberId,
			Username: member.Username,
			IsOnline: connErr == nil,
		})
	}

	return members, nil
}

func (s service) getPlayer(ctx context.Context, roomId string) (*PlaybackState, error) {
	player, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrPlayerNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &PlaybackState{
		MediaRef:  player.MediaRef,
		IsPlaying: player.IsPlaying,
		Position:  player.Position,
		Speed:     player.Speed,
		UpdatedAt: player.UpdatedAt,
	}, nil
}

func (s service) newSystemMessage(text string) ChatMessage {
	return ChatMessage{
		Id:        ulid.Make().String(),
		User:      "system",
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

// GetLocalReceivers lists the room members connected to this process. The
// pub/sub delivery loop writes envelopes to exactly these connections.
func (s service) GetLocalReceivers(ctx context.Context, roomId string) []Receiver {
	memberIds := s.sessionRepo.GetRoomMemberIds(roomId)

	receivers := make([]Receiver, 0, len(memberIds))
	for _, memberId := range memberIds {
		conn, err := s.sessionRepo.GetConn(memberId)
		if err != nil {
			continue
		}

		receivers = append(receivers, Receiver{
			MemberId: memberId,
			Conn:     conn,
		})
	}

	return receivers
}

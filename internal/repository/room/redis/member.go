package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/couchsync/server/internal/repository/room"
)

func (r repo) getMemberKey(roomId, memberId string) string {
	return "room:" + roomId + ":member:" + memberId
}

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":memberlist"
}

func (r repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	memberKey := r.getMemberKey(params.RoomId, params.MemberId)
	pipe.HSet(ctx, memberKey, room.Member{
		Username: params.Username,
		JoinedAt: params.JoinedAt,
	})
	pipe.Expire(ctx, memberKey, r.ttl)

	memberListKey := r.getMemberListKey(params.RoomId)
	r.addWithIncrement(ctx, pipe, memberListKey, params.MemberId)
	pipe.Expire(ctx, memberListKey, r.ttl)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.ZRem(ctx, r.getMemberListKey(params.RoomId), params.MemberId)
	pipe.Del(ctx, r.getMemberKey(params.RoomId, params.MemberId))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	memberIds, err := r.rc.ZRange(ctx, r.getMemberListKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return memberIds, nil
}

func (r repo) GetMember(ctx context.Context, params *room.GetMemberParams) (room.Member, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	var member room.Member
	if err := r.rc.HGetAll(ctx, r.getMemberKey(params.RoomId, params.MemberId)).Scan(&member); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Member{}, err
	}

	if member.Username == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMemberNotFound)
		return room.Member{}, room.ErrMemberNotFound
	}

	return member, nil
}

func (r repo) IsMember(ctx context.Context, params *room.GetMemberParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	score := r.rc.ZScore(ctx, r.getMemberListKey(params.RoomId), params.MemberId)
	if err := score.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return false, err
	}

	return true, nil
}

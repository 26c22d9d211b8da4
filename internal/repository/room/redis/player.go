package redis

import (
	"context"

	"github.com/couchsync/server/internal/repository/room"
)

func (r repo) getPlayerKey(roomId string) string {
	return "room:" + roomId + ":player"
}

// SetPlayer overwrites the room's stored playback state. Last write wins.
func (r repo) SetPlayer(ctx context.Context, params *room.SetPlayerParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	playerKey := r.getPlayerKey(params.RoomId)
	pipe.HSet(ctx, playerKey, room.Player{
		MediaRef:  params.MediaRef,
		IsPlaying: params.IsPlaying,
		Position:  params.Position,
		Speed:     params.Speed,
		UpdatedAt: params.UpdatedAt,
	})
	pipe.Expire(ctx, playerKey, r.ttl)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetPlayer(ctx context.Context, roomId string) (room.Player, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"room_id": roomId,
	})
	var player room.Player
	if err := r.rc.HGetAll(ctx, r.getPlayerKey(roomId)).Scan(&player); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Player{}, err
	}

	if player.MediaRef == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrPlayerNotFound)
		return room.Player{}, room.ErrPlayerNotFound
	}

	return player, nil
}

func (r repo) UpdatePlayerSeek(ctx context.Context, params *room.UpdatePlayerSeekParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	playerKey := r.getPlayerKey(params.RoomId)

	exists, err := r.rc.Exists(ctx, playerKey).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if exists == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrPlayerNotFound)
		return room.ErrPlayerNotFound
	}

	if err := r.rc.HSet(ctx, playerKey,
		"media_ref", params.MediaRef,
		"position", params.Position,
		"updated_at", params.UpdatedAt,
	).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) UpdatePlayerSpeed(ctx context.Context, params *room.UpdatePlayerSpeedParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	playerKey := r.getPlayerKey(params.RoomId)

	exists, err := r.rc.Exists(ctx, playerKey).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if exists == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrPlayerNotFound)
		return room.ErrPlayerNotFound
	}

	if err := r.rc.HSet(ctx, playerKey,
		"speed", params.Speed,
		"updated_at", params.UpdatedAt,
	).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

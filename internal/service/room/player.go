package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchsync/server/internal/repository/room"
)

type SelectMediaParams struct {
	RoomId   string
	SenderId string
	MediaRef string
}

type SelectMediaResponse struct {
	Player        PlaybackState
	PersistFailed bool
}

// SelectMedia switches the room to a new media reference. The stored state
// resets to paused at position zero; receivers do the same locally.
func (s service) SelectMedia(ctx context.Context, params *SelectMediaParams) (SelectMediaResponse, error) {
	if err := s.requireMembership(params.RoomId, params.SenderId); err != nil {
		return SelectMediaResponse{}, err
	}

	player := PlaybackState{
		MediaRef:  params.MediaRef,
		IsPlaying: false,
		Position:  0,
		Speed:     1,
		UpdatedAt: time.Now().UnixMilli(),
	}

	persistFailed := false
	if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		RoomId:    params.RoomId,
		MediaRef:  player.MediaRef,
		IsPlaying: player.IsPlaying,
		Position:  player.Position,
		Speed:     player.Speed,
		UpdatedAt: player.UpdatedAt,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist player", "error", err, "room_id", params.RoomId)
		persistFailed = true
	}

	return SelectMediaResponse{
		Player:        player,
		PersistFailed: persistFailed,
	}, nil
}

type UpdatePlaybackStateParams struct {
	RoomId    string
	SenderId  string
	IsPlaying bool
	MediaRef  string
	Position  float64
	Speed     float64
}

type UpdatePlaybackStateResponse struct {
	Player        PlaybackState
	PersistFailed bool
}

// UpdatePlaybackState overwrites the room's current state with the report.
// There is no version ordering; the most recently broadcast state wins, and
// late joiners converge from the stored copy.
func (s service) UpdatePlaybackState(ctx context.Context, params *UpdatePlaybackStateParams) (UpdatePlaybackStateResponse, error) {
	if err := s.requireMembership(params.RoomId, params.SenderId); err != nil {
		return UpdatePlaybackStateResponse{}, err
	}

	speed := params.Speed
	if speed == 0 {
		speed = 1
	}

	player := PlaybackState{
		MediaRef:  params.MediaRef,
		IsPlaying: params.IsPlaying,
		Position:  params.Position,
		Speed:     speed,
		UpdatedAt: time.Now().UnixMilli(),
	}

	persistFailed := false
	if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		RoomId:    params.RoomId,
		MediaRef:  player.MediaRef,
		IsPlaying: player.IsPlaying,
		Position:  player.Position,
		Speed:     player.Speed,
		UpdatedAt: player.UpdatedAt,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist player", "error", err, "room_id", params.RoomId)
		persistFailed = true
	}

	return UpdatePlaybackStateResponse{
		Player:        player,
		PersistFailed: persistFailed,
	}, nil
}

type SeekParams struct {
	RoomId   string
	SenderId string
	Position float64
	MediaRef string
}

type SeekResponse struct {
	Position      float64
	MediaRef      string
	PersistFailed bool
}

func (s service) Seek(ctx context.Context, params *SeekParams) (SeekResponse, error) {
	if err := s.requireMembership(params.RoomId, params.SenderId); err != nil {
		return SeekResponse{}, err
	}

	persistFailed := false
	err := s.roomRepo.UpdatePlayerSeek(ctx, &room.UpdatePlayerSeekParams{
		RoomId:    params.RoomId,
		MediaRef:  params.MediaRef,
		Position:  params.Position,
		UpdatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		if errors.Is(err, room.ErrPlayerNotFound) {
			// first event for this room; store the full state instead
			err = s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
				RoomId:    params.RoomId,
				MediaRef:  params.MediaRef,
				IsPlaying: false,
				Position:  params.Position,
				Speed:     1,
				UpdatedAt: time.Now().UnixMilli(),
			})
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to persist seek", "error", err, "room_id", params.RoomId)
			persistFailed = true
		}
	}

	return SeekResponse{
		Position:      params.Position,
		MediaRef:      params.MediaRef,
		PersistFailed: persistFailed,
	}, nil
}

type ChangeSpeedParams struct {
	RoomId   string
	SenderId string
	Speed    float64
}

type ChangeSpeedResponse struct {
	Speed         float64
	PersistFailed bool
}

func (s service) ChangeSpeed(ctx context.Context, params *ChangeSpeedParams) (ChangeSpeedResponse, error) {
	if err := s.requireMembership(params.RoomId, params.SenderId); err != nil {
		return ChangeSpeedResponse{}, err
	}

	persistFailed := false
	if err := s.roomRepo.UpdatePlayerSpeed(ctx, &room.UpdatePlayerSpeedParams{
		RoomId:    params.RoomId,
		Speed:     params.Speed,
		UpdatedAt: time.Now().UnixMilli(),
	}); err != nil && !errors.Is(err, room.ErrPlayerNotFound) {
		s.logger.ErrorContext(ctx, "failed to persist speed", "error", err, "room_id", params.RoomId)
		persistFailed = true
	}

	return ChangeSpeedResponse{
		Speed:         params.Speed,
		PersistFailed: persistFailed,
	}, nil
}

type GetPlaybackStateParams struct {
	RoomId   string
	SenderId string
}

type GetPlaybackStateResponse struct {
	Player *PlaybackState
}

// GetPlaybackState returns the stored state for late-joiner convergence.
// A nil player means nothing has been reported for the room yet.
func (s service) GetPlaybackState(ctx context.Context, params *GetPlaybackStateParams) (GetPlaybackStateResponse, error) {
	if err := s.requireMembership(params.RoomId, params.SenderId); err != nil {
		return GetPlaybackStateResponse{}, err
	}

	player, err := s.getPlayer(ctx, params.RoomId)
	if err != nil {
		return GetPlaybackStateResponse{}, fmt.Errorf("failed to get player: %w", err)
	}

	return GetPlaybackStateResponse{Player: player}, nil
}

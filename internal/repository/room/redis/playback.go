package redis

import (
	"context"
	"fmt"

	"github.com/zeldris273/watchparty/internal/repository/room"
)

func (r repo) getPlaybackKey(roomId string) string {
	return "room:" + roomId + ":playback"
}

func (r repo) SetPlayback(ctx context.Context, params *room.SetPlaybackParams) error {
	playbackKey := r.getPlaybackKey(params.RoomId)

	playback := room.Playback{
		IsPlaying:   params.IsPlaying,
		CurrentTime: params.CurrentTime,
		Duration:    params.Duration,
		UpdatedAt:   params.UpdatedAt,
	}
	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, playbackKey, playback)
	pipe.Expire(ctx, playbackKey, r.expireDuration)
	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set playback: %w", err)
	}

	return nil
}

func (r repo) GetPlayback(ctx context.Context, roomId string) (room.Playback, error) {
	playbackKey := r.getPlaybackKey(roomId)
	exists, err := r.rc.Exists(ctx, playbackKey).Result()
	if err != nil {
		return room.Playback{}, fmt.Errorf("failed to check if playback exists: %w", err)
	}
	if exists == 0 {
		return room.Playback{}, room.ErrPlaybackNotFound
	}

	var playback room.Playback
	if err := r.rc.HGetAll(ctx, playbackKey).Scan(&playback); err != nil {
		return room.Playback{}, fmt.Errorf("failed to get playback: %w", err)
	}

	r.rc.Expire(ctx, playbackKey, r.expireDuration)

	return playback, nil
}

func (r repo) UpdatePlaybackState(ctx context.Context, params *room.UpdatePlaybackStateParams) error {
	playbackKey := r.getPlaybackKey(params.RoomId)
	exists, err := r.rc.Exists(ctx, playbackKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check if playback exists: %w", err)
	}
	if exists == 0 {
		return room.ErrPlaybackNotFound
	}

	if err := r.rc.HSet(ctx, playbackKey,
		"is_playing", params.IsPlaying,
		"current_time", params.CurrentTime,
		"duration", params.Duration,
		"updated_at", params.UpdatedAt,
	).Err(); err != nil {
		return fmt.Errorf("failed to update playback state: %w", err)
	}

	r.rc.Expire(ctx, playbackKey, r.expireDuration)

	return nil
}

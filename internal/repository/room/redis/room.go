package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/zeldris273/watchparty/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

const (
	publicRoomsKey    = "rooms:public"
	scheduledRoomsKey = "rooms:scheduled"
)

func (r repo) getHostRoomsKey(hostUserId string) string {
	return "rooms:host:" + hostUserId
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	roomKey := r.getRoomKey(params.RoomId)

	// the host_user_id field doubles as the existence marker: claiming it
	// atomically prevents two hosts creating the same room id
	created, err := r.rc.HSetNX(ctx, roomKey, "host_user_id", params.HostUserId).Result()
	if err != nil {
		return fmt.Errorf("failed to claim room: %w", err)
	}
	if !created {
		return room.ErrRoomAlreadyExists
	}

	rm := room.Room{
		HostUserId:         params.HostUserId,
		HostDisplayName:    params.HostDisplayName,
		HostAvatarURL:      params.HostAvatarURL,
		MovieData:          params.MovieData,
		Started:            false,
		IsPrivate:          params.IsPrivate,
		AutoStart:          params.AutoStart,
		ScheduledStartTime: params.ScheduledStartTime,
		CreatedAt:          params.CreatedAt,
	}
	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, roomKey, rm)
	pipe.Expire(ctx, roomKey, r.expireDuration)
	if !params.IsPrivate {
		pipe.SAdd(ctx, publicRoomsKey, params.RoomId)
	}
	pipe.SAdd(ctx, r.getHostRoomsKey(params.HostUserId), params.RoomId)
	if params.AutoStart && params.ScheduledStartTime > 0 {
		pipe.ZAdd(ctx, scheduledRoomsKey, redis.Z{
			Score:  float64(params.ScheduledStartTime),
			Member: params.RoomId,
		})
	}
	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	roomKey := r.getRoomKey(roomId)
	exists, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return room.Room{}, fmt.Errorf("failed to check if room exists: %w", err)
	}
	if exists == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	var rm room.Room
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return rm, nil
}

func (r repo) SetRoomStarted(ctx context.Context, roomId string) error {
	roomKey := r.getRoomKey(roomId)
	exists, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check if room exists: %w", err)
	}
	if exists == 0 {
		return room.ErrRoomNotFound
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, roomKey, "started", true)
	pipe.ZRem(ctx, scheduledRoomsKey, roomId)
	pipe.Expire(ctx, roomKey, r.expireDuration)
	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set room started: %w", err)
	}

	return nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string, hostUserId string) error {
	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getRoomKey(roomId))
	pipe.Del(ctx, r.getPlaybackKey(roomId))
	pipe.Del(ctx, r.getMembersKey(roomId))
	pipe.SRem(ctx, publicRoomsKey, roomId)
	pipe.SRem(ctx, r.getHostRoomsKey(hostUserId), roomId)
	pipe.ZRem(ctx, scheduledRoomsKey, roomId)
	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}

	return nil
}

func (r repo) GetPublicRoomIds(ctx context.Context) ([]string, error) {
	roomIds, err := r.rc.SMembers(ctx, publicRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get public room ids: %w", err)
	}

	return roomIds, nil
}

func (r repo) GetHostRoomIds(ctx context.Context, hostUserId string) ([]string, error) {
	roomIds, err := r.rc.SMembers(ctx, r.getHostRoomsKey(hostUserId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get host room ids: %w", err)
	}

	return roomIds, nil
}

// PopDueScheduledRooms removes and returns the ids of rooms whose scheduled
// start time is at or before now.
func (r repo) PopDueScheduledRooms(ctx context.Context, now int64) ([]string, error) {
	roomIds, err := r.rc.ZRangeByScore(ctx, scheduledRoomsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get due scheduled rooms: %w", err)
	}
	if len(roomIds) == 0 {
		return nil, nil
	}

	members := make([]interface{}, 0, len(roomIds))
	for _, roomId := range roomIds {
		members = append(members, roomId)
	}
	if err := r.rc.ZRem(ctx, scheduledRoomsKey, members...).Err(); err != nil {
		return nil, fmt.Errorf("failed to remove due scheduled rooms: %w", err)
	}

	return roomIds, nil
}

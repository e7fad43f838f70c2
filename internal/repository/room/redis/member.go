package redis

import (
	"context"
	"fmt"

	"github.com/zeldris273/watchparty/internal/repository/room"
)

func (r repo) getMembersKey(roomId string) string {
	return "room:" + roomId + ":members"
}

// AddMember adds userId to the room's member set. Adding an id that is
// already present is a no-op and reports added=false, so a reconnecting
// viewer never inflates the count.
func (r repo) AddMember(ctx context.Context, params *room.AddMemberParams) (bool, error) {
	membersKey := r.getMembersKey(params.RoomId)
	added, err := r.rc.SAdd(ctx, membersKey, params.UserId).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add member: %w", err)
	}

	r.rc.Expire(ctx, membersKey, r.expireDuration)

	return added == 1, nil
}

func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	membersKey := r.getMembersKey(params.RoomId)
	removed, err := r.rc.SRem(ctx, membersKey, params.UserId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if removed == 0 {
		return room.ErrMemberNotFound
	}

	return nil
}

func (r repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	memberIds, err := r.rc.SMembers(ctx, r.getMembersKey(roomId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	return memberIds, nil
}

func (r repo) GetViewerCount(ctx context.Context, roomId string) (int, error) {
	count, err := r.rc.SCard(ctx, r.getMembersKey(roomId)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get viewer count: %w", err)
	}

	return int(count), nil
}

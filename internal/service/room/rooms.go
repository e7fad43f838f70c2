package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	roomRepo "github.com/zeldris273/watchparty/internal/repository/room"
)

// PublicRooms lists every discoverable room for the room browser.
func (s service) PublicRooms(ctx context.Context) ([]RoomSummary, error) {
	roomIds, err := s.roomRepo.GetPublicRoomIds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get public room ids: %w", err)
	}

	return s.summarize(ctx, roomIds)
}

// RoomsByHost lists the rooms created by one host.
func (s service) RoomsByHost(ctx context.Context, hostUserId string) ([]RoomSummary, error) {
	roomIds, err := s.roomRepo.GetHostRoomIds(ctx, hostUserId)
	if err != nil {
		return nil, fmt.Errorf("failed to get host room ids: %w", err)
	}

	return s.summarize(ctx, roomIds)
}

func (s service) summarize(ctx context.Context, roomIds []string) ([]RoomSummary, error) {
	summaries := make([]RoomSummary, 0, len(roomIds))
	for _, roomId := range roomIds {
		rm, err := s.roomRepo.GetRoom(ctx, roomId)
		if err != nil {
			// index entries can outlive an expired room hash
			if errors.Is(err, roomRepo.ErrRoomNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get room: %w", err)
		}

		viewerCount, err := s.roomRepo.GetViewerCount(ctx, roomId)
		if err != nil {
			return nil, fmt.Errorf("failed to get viewer count: %w", err)
		}

		summaries = append(summaries, RoomSummary{
			RoomId:             roomId,
			MovieData:          json.RawMessage(rm.MovieData),
			ViewerCount:        viewerCount,
			Started:            rm.Started,
			AutoStart:          rm.AutoStart,
			ScheduledStartTime: rm.ScheduledStartTime,
			CreatedAt:          rm.CreatedAt,
		})
	}

	return summaries, nil
}

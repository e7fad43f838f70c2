package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	roomRepo "github.com/zeldris273/watchparty/internal/repository/room"
)

type AutoStartedRoom struct {
	RoomId string
	Conns  []*websocket.Conn
}

// AutoStartDue starts every scheduled room whose start time has passed and
// returns the connections to notify per room. The schedule authority lives
// here, server side; clients only display countdowns.
func (s service) AutoStartDue(ctx context.Context) ([]AutoStartedRoom, error) {
	roomIds, err := s.roomRepo.PopDueScheduledRooms(ctx, s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to pop due scheduled rooms: %w", err)
	}

	started := make([]AutoStartedRoom, 0, len(roomIds))
	for _, roomId := range roomIds {
		rm, err := s.roomRepo.GetRoom(ctx, roomId)
		if err != nil {
			if errors.Is(err, roomRepo.ErrRoomNotFound) {
				continue
			}
			return started, fmt.Errorf("failed to get room: %w", err)
		}
		// the host may have started it by hand before the schedule fired
		if rm.Started {
			continue
		}

		if err := s.roomRepo.SetRoomStarted(ctx, roomId); err != nil {
			return started, fmt.Errorf("failed to set room started: %w", err)
		}

		if err := s.roomRepo.SetPlayback(ctx, &roomRepo.SetPlaybackParams{
			RoomId:      roomId,
			IsPlaying:   true,
			CurrentTime: 0,
			Duration:    0,
			UpdatedAt:   s.now().Unix(),
		}); err != nil {
			return started, fmt.Errorf("failed to set playback: %w", err)
		}

		conns, err := s.getConnsByRoomId(ctx, roomId)
		if err != nil {
			return started, fmt.Errorf("failed to get conns by room id: %w", err)
		}

		s.logger.InfoContext(ctx, "session auto-started", "room_id", roomId)

		started = append(started, AutoStartedRoom{RoomId: roomId, Conns: conns})
	}

	return started, nil
}

package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/zeldris273/watchparty/internal/repository/connection"
	roomRepo "github.com/zeldris273/watchparty/internal/repository/room"
	"github.com/zeldris273/watchparty/pkg/protocol"
)

// A client id binds one user identity to one room. Room ids are opaque
// and may contain the separator; user ids never do, so the id splits
// unambiguously at the last separator.
func clientId(roomId, userId string) string {
	return roomId + ":" + userId
}

func splitClientId(id string) (roomId, userId string) {
	i := strings.LastIndex(id, ":")
	if i < 0 {
		return id, ""
	}
	return id[:i], id[i+1:]
}

func (s service) getConnsByRoomId(ctx context.Context, roomId string) ([]*websocket.Conn, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	conns := make([]*websocket.Conn, 0, len(memberIds))
	for _, memberId := range memberIds {
		conn, err := s.connRepo.GetConn(clientId(roomId, memberId))
		if err != nil {
			// a member in a reconnect gap has no live connection
			if errors.Is(err, connection.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get conn: %w", err)
		}

		conns = append(conns, conn)
	}

	return conns, nil
}

// resolveSender maps a connection back to the user id it joined with and
// verifies it belongs to roomId.
func (s service) resolveSender(conn *websocket.Conn, roomId string) (string, error) {
	id, err := s.connRepo.GetClientId(conn)
	if err != nil {
		return "", ErrNotInRoom
	}

	connRoomId, userId := splitClientId(id)
	if connRoomId != roomId {
		return "", ErrNotInRoom
	}

	return userId, nil
}

func (s service) checkIfHost(ctx context.Context, roomId string, userId string) error {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to get room: %w", err)
	}

	if rm.HostUserId != userId {
		return ErrPermissionDenied
	}

	return nil
}

// playbackPosition extrapolates the host's position from the last stored
// update. Only meaningful while the playback is running.
func (s service) playbackPosition(playback roomRepo.Playback) float64 {
	if !playback.IsPlaying {
		return playback.CurrentTime
	}

	elapsed := s.now().Unix() - playback.UpdatedAt
	return protocol.ClampTime(playback.CurrentTime+float64(elapsed), playback.Duration)
}

package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/zeldris273/watchparty/internal/repository/connection"
	roomRepo "github.com/zeldris273/watchparty/internal/repository/room"
)

type CreateRoomParams struct {
	RoomId             string
	HostUserId         string
	HostDisplayName    string
	HostAvatarURL      string
	MovieData          json.RawMessage
	AutoStart          bool
	ScheduledStartTime int64
	IsPrivate          bool
}

type CreateRoomResponse struct {
	CreatedAt int64
}

// CreateRoom registers a new room with the caller as its immutable host.
// The caller still has to JoinRoom afterwards to enter it.
func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	createdAt := s.now().Unix()
	if err := s.roomRepo.SetRoom(ctx, &roomRepo.SetRoomParams{
		RoomId:             params.RoomId,
		HostUserId:         params.HostUserId,
		HostDisplayName:    params.HostDisplayName,
		HostAvatarURL:      params.HostAvatarURL,
		MovieData:          string(params.MovieData),
		IsPrivate:          params.IsPrivate,
		AutoStart:          params.AutoStart,
		ScheduledStartTime: params.ScheduledStartTime,
		CreatedAt:          createdAt,
	}); err != nil {
		if errors.Is(err, roomRepo.ErrRoomAlreadyExists) {
			return CreateRoomResponse{}, ErrRoomAlreadyExists
		}
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	if err := s.roomRepo.SetPlayback(ctx, &roomRepo.SetPlaybackParams{
		RoomId:      params.RoomId,
		IsPlaying:   false,
		CurrentTime: 0,
		Duration:    0,
		UpdatedAt:   createdAt,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set playback: %w", err)
	}

	s.logger.InfoContext(ctx, "room created", "room_id", params.RoomId, "host_user_id", params.HostUserId)

	return CreateRoomResponse{CreatedAt: createdAt}, nil
}

type JoinRoomParams struct {
	RoomId      string
	UserId      string
	DisplayName string
	AvatarURL   string
	Conn        *websocket.Conn
}

type JoinRoomResponse struct {
	Snapshot    Snapshot
	IsNewMember bool
	ViewerCount int
	// OtherConns are the connections of every other room member, for the
	// join announcement fan-out.
	OtherConns []*websocket.Conn
	// EvictedConn is a stale connection replaced by this join, if any.
	EvictedConn *websocket.Conn
}

// JoinRoom adds the user to the room (idempotently, keyed by user id) and
// returns the full state snapshot the client needs to mirror the session,
// including the extrapolated playback position for late joins.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	rm, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return JoinRoomResponse{}, ErrRoomNotFound
		}
		return JoinRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	viewerCount, err := s.roomRepo.GetViewerCount(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get viewer count: %w", err)
	}
	if viewerCount >= s.viewersLimit {
		// a rejoining member does not add a viewer, so the limit does
		// not apply to it
		memberIds, err := s.roomRepo.GetMemberIds(ctx, params.RoomId)
		if err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to get member ids: %w", err)
		}
		if !slices.Contains(memberIds, params.UserId) {
			return JoinRoomResponse{}, ErrRoomFull
		}
	}

	added, err := s.roomRepo.AddMember(ctx, &roomRepo.AddMemberParams{
		RoomId: params.RoomId,
		UserId: params.UserId,
	})
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to add member: %w", err)
	}

	evicted, err := s.connRepo.Add(params.Conn, clientId(params.RoomId, params.UserId))
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to add conn: %w", err)
	}

	viewerCount, err = s.roomRepo.GetViewerCount(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get viewer count: %w", err)
	}

	playback, err := s.roomRepo.GetPlayback(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get playback: %w", err)
	}

	otherConns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}
	for i, conn := range otherConns {
		if conn == params.Conn {
			otherConns = append(otherConns[:i], otherConns[i+1:]...)
			break
		}
	}

	s.logger.InfoContext(ctx, "member joined",
		"room_id", params.RoomId,
		"user_id", params.UserId,
		"viewer_count", viewerCount,
		"rejoined", !added,
	)

	return JoinRoomResponse{
		Snapshot: Snapshot{
			RoomId:             params.RoomId,
			IsHost:             params.UserId == rm.HostUserId,
			HostUserId:         rm.HostUserId,
			HostDisplayName:    rm.HostDisplayName,
			HostAvatarURL:      rm.HostAvatarURL,
			CreatedAt:          rm.CreatedAt,
			ViewerCount:        viewerCount,
			MovieData:          json.RawMessage(rm.MovieData),
			AutoStart:          rm.AutoStart,
			ScheduledStartTime: rm.ScheduledStartTime,
			Started:            rm.Started,
			IsPlaying:          rm.Started && playback.IsPlaying,
			CurrentTime:        s.playbackPosition(playback),
		},
		IsNewMember: added,
		ViewerCount: viewerCount,
		OtherConns:  otherConns,
		EvictedConn: evicted,
	}, nil
}

type StartSessionParams struct {
	RoomId string
	Conn   *websocket.Conn
}

type StartSessionResponse struct {
	Conns []*websocket.Conn
}

// StartSession marks the room as started and resets the playback anchor to
// zero. Host only.
func (s service) StartSession(ctx context.Context, params *StartSessionParams) (StartSessionResponse, error) {
	userId, err := s.resolveSender(params.Conn, params.RoomId)
	if err != nil {
		return StartSessionResponse{}, err
	}

	if err := s.checkIfHost(ctx, params.RoomId, userId); err != nil {
		return StartSessionResponse{}, err
	}

	if err := s.roomRepo.SetRoomStarted(ctx, params.RoomId); err != nil {
		return StartSessionResponse{}, fmt.Errorf("failed to set room started: %w", err)
	}

	if err := s.roomRepo.SetPlayback(ctx, &roomRepo.SetPlaybackParams{
		RoomId:      params.RoomId,
		IsPlaying:   true,
		CurrentTime: 0,
		Duration:    0,
		UpdatedAt:   s.now().Unix(),
	}); err != nil {
		return StartSessionResponse{}, fmt.Errorf("failed to set playback: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return StartSessionResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	s.logger.InfoContext(ctx, "session started", "room_id", params.RoomId)

	return StartSessionResponse{Conns: conns}, nil
}

type EndSessionParams struct {
	RoomId string
	Conn   *websocket.Conn
}

type EndSessionResponse struct {
	Conns []*websocket.Conn
}

// EndSession destroys the room. Host only. The returned connections still
// have to be notified and closed by the caller.
func (s service) EndSession(ctx context.Context, params *EndSessionParams) (EndSessionResponse, error) {
	userId, err := s.resolveSender(params.Conn, params.RoomId)
	if err != nil {
		return EndSessionResponse{}, err
	}

	if err := s.checkIfHost(ctx, params.RoomId, userId); err != nil {
		return EndSessionResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return EndSessionResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	memberIds, err := s.roomRepo.GetMemberIds(ctx, params.RoomId)
	if err != nil {
		return EndSessionResponse{}, fmt.Errorf("failed to get member ids: %w", err)
	}
	for _, memberId := range memberIds {
		if _, err := s.connRepo.RemoveByClientId(clientId(params.RoomId, memberId)); err != nil && !errors.Is(err, connection.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to remove conn", "error", err)
		}
	}

	if err := s.roomRepo.RemoveRoom(ctx, params.RoomId, userId); err != nil {
		return EndSessionResponse{}, fmt.Errorf("failed to remove room: %w", err)
	}

	s.logger.InfoContext(ctx, "session ended", "room_id", params.RoomId)

	return EndSessionResponse{Conns: conns}, nil
}

type DisconnectResponse struct {
	RoomId      string
	UserId      string
	IsHost      bool
	IsRoomEnded bool
	ViewerCount int
	Conns       []*websocket.Conn
}

// DisconnectByConn removes the connection's membership. A host disconnect
// destroys the room; the remaining connections must be told the session
// ended. An unknown connection (never joined, or already replaced by a
// reconnect) resolves to ErrNotInRoom.
func (s service) DisconnectByConn(ctx context.Context, conn *websocket.Conn) (DisconnectResponse, error) {
	id, err := s.connRepo.RemoveByConn(conn)
	if err != nil {
		return DisconnectResponse{}, ErrNotInRoom
	}

	roomId, userId := splitClientId(id)

	if err := s.roomRepo.RemoveMember(ctx, &roomRepo.RemoveMemberParams{
		RoomId: roomId,
		UserId: userId,
	}); err != nil && !errors.Is(err, roomRepo.ErrMemberNotFound) {
		return DisconnectResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			// room already destroyed
			return DisconnectResponse{RoomId: roomId, UserId: userId, IsRoomEnded: true}, nil
		}
		return DisconnectResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, roomId)
	if err != nil {
		return DisconnectResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	if rm.HostUserId == userId {
		memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
		if err != nil {
			return DisconnectResponse{}, fmt.Errorf("failed to get member ids: %w", err)
		}
		for _, memberId := range memberIds {
			if _, err := s.connRepo.RemoveByClientId(clientId(roomId, memberId)); err != nil && !errors.Is(err, connection.ErrNotFound) {
				s.logger.WarnContext(ctx, "failed to remove conn", "error", err)
			}
		}

		if err := s.roomRepo.RemoveRoom(ctx, roomId, userId); err != nil {
			return DisconnectResponse{}, fmt.Errorf("failed to remove room: %w", err)
		}

		s.logger.InfoContext(ctx, "host disconnected, room destroyed", "room_id", roomId)

		return DisconnectResponse{
			RoomId:      roomId,
			UserId:      userId,
			IsHost:      true,
			IsRoomEnded: true,
			Conns:       conns,
		}, nil
	}

	viewerCount, err := s.roomRepo.GetViewerCount(ctx, roomId)
	if err != nil {
		return DisconnectResponse{}, fmt.Errorf("failed to get viewer count: %w", err)
	}

	s.logger.InfoContext(ctx, "member disconnected", "room_id", roomId, "user_id", userId, "viewer_count", viewerCount)

	return DisconnectResponse{
		RoomId:      roomId,
		UserId:      userId,
		ViewerCount: viewerCount,
		Conns:       conns,
	}, nil
}

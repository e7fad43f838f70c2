package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	roomRepo "github.com/zeldris273/watchparty/internal/repository/room"
	"github.com/zeldris273/watchparty/pkg/protocol"
)

type SyncPlayParams struct {
	RoomId      string
	CurrentTime float64
	Duration    float64
	Conn        *websocket.Conn
}

type SyncPlayResponse struct {
	CurrentTime float64
	Conns       []*websocket.Conn
}

func (s service) SyncPlay(ctx context.Context, params *SyncPlayParams) (SyncPlayResponse, error) {
	currentTime, conns, err := s.syncState(ctx, params.RoomId, params.Conn, true, params.CurrentTime, params.Duration)
	if err != nil {
		return SyncPlayResponse{}, err
	}

	return SyncPlayResponse{CurrentTime: currentTime, Conns: conns}, nil
}

type SyncPauseParams struct {
	RoomId      string
	CurrentTime float64
	Duration    float64
	Conn        *websocket.Conn
}

type SyncPauseResponse struct {
	CurrentTime float64
	Conns       []*websocket.Conn
}

func (s service) SyncPause(ctx context.Context, params *SyncPauseParams) (SyncPauseResponse, error) {
	currentTime, conns, err := s.syncState(ctx, params.RoomId, params.Conn, false, params.CurrentTime, params.Duration)
	if err != nil {
		return SyncPauseResponse{}, err
	}

	return SyncPauseResponse{CurrentTime: currentTime, Conns: conns}, nil
}

type SyncSeekParams struct {
	RoomId  string
	NewTime float64
	Conn    *websocket.Conn
}

type SyncSeekResponse struct {
	NewTime float64
	Conns   []*websocket.Conn
}

// SyncSeek moves the position without touching the play/pause state.
func (s service) SyncSeek(ctx context.Context, params *SyncSeekParams) (SyncSeekResponse, error) {
	userId, err := s.resolveSender(params.Conn, params.RoomId)
	if err != nil {
		return SyncSeekResponse{}, err
	}
	if err := s.checkIfHost(ctx, params.RoomId, userId); err != nil {
		return SyncSeekResponse{}, err
	}

	playback, err := s.roomRepo.GetPlayback(ctx, params.RoomId)
	if err != nil {
		return SyncSeekResponse{}, fmt.Errorf("failed to get playback: %w", err)
	}

	newTime := protocol.ClampTime(params.NewTime, playback.Duration)
	if err := s.roomRepo.UpdatePlaybackState(ctx, &roomRepo.UpdatePlaybackStateParams{
		RoomId:      params.RoomId,
		IsPlaying:   playback.IsPlaying,
		CurrentTime: newTime,
		Duration:    playback.Duration,
		UpdatedAt:   s.now().Unix(),
	}); err != nil {
		return SyncSeekResponse{}, fmt.Errorf("failed to update playback state: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return SyncSeekResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return SyncSeekResponse{NewTime: newTime, Conns: conns}, nil
}

type SyncSkipParams struct {
	RoomId string
	Conn   *websocket.Conn
}

type SyncSkipResponse struct {
	Conns []*websocket.Conn
}

// SyncSkipForward advances the stored position by the fixed increment. The
// increment itself is applied by every client on the broadcast echo; the
// hub only keeps its authoritative position in step for late joiners.
func (s service) SyncSkipForward(ctx context.Context, params *SyncSkipParams) (SyncSkipResponse, error) {
	conns, err := s.skip(ctx, params.RoomId, params.Conn, protocol.SkipSeconds)
	if err != nil {
		return SyncSkipResponse{}, err
	}

	return SyncSkipResponse{Conns: conns}, nil
}

func (s service) SyncSkipBackward(ctx context.Context, params *SyncSkipParams) (SyncSkipResponse, error) {
	conns, err := s.skip(ctx, params.RoomId, params.Conn, -protocol.SkipSeconds)
	if err != nil {
		return SyncSkipResponse{}, err
	}

	return SyncSkipResponse{Conns: conns}, nil
}

func (s service) syncState(ctx context.Context, roomId string, conn *websocket.Conn, isPlaying bool, currentTime, duration float64) (float64, []*websocket.Conn, error) {
	userId, err := s.resolveSender(conn, roomId)
	if err != nil {
		return 0, nil, err
	}
	if err := s.checkIfHost(ctx, roomId, userId); err != nil {
		return 0, nil, err
	}

	playback, err := s.roomRepo.GetPlayback(ctx, roomId)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get playback: %w", err)
	}

	// the host's player knows the real media length; keep the stored one
	// when it reports none
	if duration <= 0 {
		duration = playback.Duration
	}

	currentTime = protocol.ClampTime(currentTime, duration)
	if err := s.roomRepo.UpdatePlaybackState(ctx, &roomRepo.UpdatePlaybackStateParams{
		RoomId:      roomId,
		IsPlaying:   isPlaying,
		CurrentTime: currentTime,
		Duration:    duration,
		UpdatedAt:   s.now().Unix(),
	}); err != nil {
		return 0, nil, fmt.Errorf("failed to update playback state: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, roomId)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return currentTime, conns, nil
}

func (s service) skip(ctx context.Context, roomId string, conn *websocket.Conn, delta float64) ([]*websocket.Conn, error) {
	userId, err := s.resolveSender(conn, roomId)
	if err != nil {
		return nil, err
	}
	if err := s.checkIfHost(ctx, roomId, userId); err != nil {
		return nil, err
	}

	playback, err := s.roomRepo.GetPlayback(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get playback: %w", err)
	}

	newTime := protocol.ClampTime(s.playbackPosition(playback)+delta, playback.Duration)
	if err := s.roomRepo.UpdatePlaybackState(ctx, &roomRepo.UpdatePlaybackStateParams{
		RoomId:      roomId,
		IsPlaying:   playback.IsPlaying,
		CurrentTime: newTime,
		Duration:    playback.Duration,
		UpdatedAt:   s.now().Unix(),
	}); err != nil {
		return nil, fmt.Errorf("failed to update playback state: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return conns, nil
}

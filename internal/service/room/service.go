package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	roomRepo "github.com/zeldris273/watchparty/internal/repository/room"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomFull          = errors.New("room is full")
	ErrNotInRoom         = errors.New("not in a room")
)

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *roomRepo.SetRoomParams) error
	GetRoom(context.Context, string) (roomRepo.Room, error)
	SetRoomStarted(context.Context, string) error
	RemoveRoom(ctx context.Context, roomId string, hostUserId string) error
	GetPublicRoomIds(context.Context) ([]string, error)
	GetHostRoomIds(context.Context, string) ([]string, error)
	PopDueScheduledRooms(context.Context, int64) ([]string, error)
	// playback
	SetPlayback(context.Context, *roomRepo.SetPlaybackParams) error
	GetPlayback(context.Context, string) (roomRepo.Playback, error)
	UpdatePlaybackState(context.Context, *roomRepo.UpdatePlaybackStateParams) error
	// member
	AddMember(context.Context, *roomRepo.AddMemberParams) (bool, error)
	RemoveMember(context.Context, *roomRepo.RemoveMemberParams) error
	GetMemberIds(context.Context, string) ([]string, error)
	GetViewerCount(context.Context, string) (int, error)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, clientId string) (*websocket.Conn, error)
	RemoveByConn(*websocket.Conn) (string, error)
	RemoveByClientId(string) (*websocket.Conn, error)
	GetConn(string) (*websocket.Conn, error)
	GetClientId(*websocket.Conn) (string, error)
}

type service struct {
	roomRepo     iRoomRepo
	connRepo     iConnRepo
	logger       *slog.Logger
	viewersLimit int
	now          func() time.Time
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, viewersLimit int, logger *slog.Logger) *service {
	return &service{
		roomRepo:     roomRepo,
		connRepo:     connRepo,
		logger:       logger,
		viewersLimit: viewersLimit,
		now:          time.Now,
	}
}

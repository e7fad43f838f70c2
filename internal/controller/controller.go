package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gammazero/workerpool"
	"github.com/gorilla/websocket"
	"github.com/zeldris273/watchparty/internal/service/room"
	"github.com/zeldris273/watchparty/pkg/randstr"
	"github.com/zeldris273/watchparty/pkg/validator"
	"github.com/zeldris273/watchparty/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	StartSession(context.Context, *room.StartSessionParams) (room.StartSessionResponse, error)
	EndSession(context.Context, *room.EndSessionParams) (room.EndSessionResponse, error)
	SyncPlay(context.Context, *room.SyncPlayParams) (room.SyncPlayResponse, error)
	SyncPause(context.Context, *room.SyncPauseParams) (room.SyncPauseResponse, error)
	SyncSeek(context.Context, *room.SyncSeekParams) (room.SyncSeekResponse, error)
	SyncSkipForward(context.Context, *room.SyncSkipParams) (room.SyncSkipResponse, error)
	SyncSkipBackward(context.Context, *room.SyncSkipParams) (room.SyncSkipResponse, error)
	SendChat(context.Context, *room.SendChatParams) (room.SendChatResponse, error)
	DisconnectByConn(context.Context, *websocket.Conn) (room.DisconnectResponse, error)
	PublicRooms(context.Context) ([]room.RoomSummary, error)
	RoomsByHost(context.Context, string) ([]room.RoomSummary, error)
	AutoStartDue(context.Context) ([]room.AutoStartedRoom, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	// one worker so every room observes broadcasts in the order the hub
	// produced them
	pool      *workerpool.WorkerPool
	guestName *randstr.Generator
	logger    *slog.Logger
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.New(),
		pool:        workerpool.New(1),
		guestName:   randstr.New([]byte("abcdefghijklmnopqrstuvwxyz0123456789")),
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}

// Close drains the broadcast queue.
func (c *controller) Close() {
	c.pool.StopWait()
}

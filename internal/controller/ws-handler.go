package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/zeldris273/watchparty/internal/service/room"
	"github.com/zeldris273/watchparty/pkg/protocol"
)

type CreateRoomInput struct {
	RoomId             string          `json:"room_id" validate:"required,max=64"`
	HostUserId         string          `json:"host_user_id" validate:"required,max=64,excludes=:"`
	MovieData          json.RawMessage `json:"movie_data" validate:"required"`
	AutoStart          bool            `json:"auto_start"`
	ScheduledStartTime int64           `json:"scheduled_start_time"`
	IsPrivate          bool            `json:"is_private"`
}

func (c *controller) handleCreateRoom(ctx context.Context, conn *websocket.Conn, input CreateRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	user := c.getUserFromCtx(ctx)

	_, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		RoomId:             input.RoomId,
		HostUserId:         input.HostUserId,
		HostDisplayName:    user.displayName,
		HostAvatarURL:      user.avatarURL,
		MovieData:          input.MovieData,
		AutoStart:          input.AutoStart,
		ScheduledStartTime: input.ScheduledStartTime,
		IsPrivate:          input.IsPrivate,
	})

	created := protocol.RoomCreated{RoomId: input.RoomId, Success: err == nil}
	if err != nil {
		created.ErrorMessage = userMessage(err)
	}
	c.writeToConn(ctx, conn, c.newMessage(protocol.EventRoomCreated, created))

	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

type JoinRoomInput struct {
	RoomId string `json:"room_id" validate:"required,max=64"`
	UserId string `json:"user_id" validate:"required,max=64,excludes=:"`
}

func (c *controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, input JoinRoomInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	user := c.getUserFromCtx(ctx)

	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomId:      input.RoomId,
		UserId:      input.UserId,
		DisplayName: user.displayName,
		AvatarURL:   user.avatarURL,
		Conn:        conn,
	})
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	// a reconnect replaced the previous connection for this user
	if joinRoomResp.EvictedConn != nil {
		c.closeConns(ctx, []*websocket.Conn{joinRoomResp.EvictedConn}, protocol.CloseConnReplaced)
	}

	snapshot := joinRoomResp.Snapshot
	c.writeToConn(ctx, conn, c.newMessage(protocol.EventJoinedRoom, protocol.JoinedRoom{
		RoomId:             snapshot.RoomId,
		IsHost:             snapshot.IsHost,
		HostUserId:         snapshot.HostUserId,
		HostDisplayName:    snapshot.HostDisplayName,
		HostAvatarURL:      snapshot.HostAvatarURL,
		CreatedAt:          snapshot.CreatedAt,
		ViewerCount:        snapshot.ViewerCount,
		MovieData:          snapshot.MovieData,
		AutoStart:          snapshot.AutoStart,
		ScheduledStartTime: snapshot.ScheduledStartTime,
		Started:            snapshot.Started,
		IsPlaying:          snapshot.IsPlaying,
		CurrentTime:        snapshot.CurrentTime,
	}))

	c.broadcast(ctx, joinRoomResp.OtherConns, c.newMessage(protocol.EventViewerCountUpdated, protocol.ViewerCountUpdated{
		Count: joinRoomResp.ViewerCount,
	}))

	if joinRoomResp.IsNewMember {
		c.broadcast(ctx, joinRoomResp.OtherConns, c.newMessage(protocol.EventReceiveUserProfile, protocol.ReceiveUserProfile{
			DisplayName: user.displayName,
			AvatarURL:   user.avatarURL,
		}))
		c.broadcast(ctx, joinRoomResp.OtherConns, c.newMessage(protocol.EventReceiveSystemMessage, protocol.ReceiveSystemMessage{
			Message: user.displayName + " joined the room",
		}))
	}

	return nil
}

type StartSessionInput struct {
	RoomId string `json:"room_id" validate:"required"`
}

func (c *controller) handleStartSession(ctx context.Context, conn *websocket.Conn, input StartSessionInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	startSessionResp, err := c.roomService.StartSession(ctx, &room.StartSessionParams{
		RoomId: input.RoomId,
		Conn:   conn,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// every client, host included, starts from the same broadcast
	c.broadcast(ctx, startSessionResp.Conns, c.newMessage(protocol.EventReceiveStartSession, nil))

	return nil
}

type EndSessionInput struct {
	RoomId string `json:"room_id" validate:"required"`
}

func (c *controller) handleEndSession(ctx context.Context, conn *websocket.Conn, input EndSessionInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	endSessionResp, err := c.roomService.EndSession(ctx, &room.EndSessionParams{
		RoomId: input.RoomId,
		Conn:   conn,
	})
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	// the sender applies the end locally on its ack; closing its
	// connection here would race the ack write
	conns := endSessionResp.Conns
	for i, cn := range conns {
		if cn == conn {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	c.broadcast(ctx, conns, c.newMessage(protocol.EventReceiveEndSession, nil))
	c.closeConns(ctx, conns, protocol.CloseSessionEnded)

	return nil
}

type SyncPlayInput struct {
	RoomId      string  `json:"room_id" validate:"required"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
}

func (c *controller) handleSyncPlay(ctx context.Context, conn *websocket.Conn, input SyncPlayInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	syncPlayResp, err := c.roomService.SyncPlay(ctx, &room.SyncPlayParams{
		RoomId:      input.RoomId,
		CurrentTime: input.CurrentTime,
		Duration:    input.Duration,
		Conn:        conn,
	})
	if err != nil {
		return fmt.Errorf("failed to sync play: %w", err)
	}

	c.broadcast(ctx, syncPlayResp.Conns, c.newMessage(protocol.EventReceivePlay, protocol.ReceivePlay{
		Time: syncPlayResp.CurrentTime,
	}))

	return nil
}

type SyncPauseInput struct {
	RoomId      string  `json:"room_id" validate:"required"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
}

func (c *controller) handleSyncPause(ctx context.Context, conn *websocket.Conn, input SyncPauseInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	syncPauseResp, err := c.roomService.SyncPause(ctx, &room.SyncPauseParams{
		RoomId:      input.RoomId,
		CurrentTime: input.CurrentTime,
		Duration:    input.Duration,
		Conn:        conn,
	})
	if err != nil {
		return fmt.Errorf("failed to sync pause: %w", err)
	}

	c.broadcast(ctx, syncPauseResp.Conns, c.newMessage(protocol.EventReceivePause, protocol.ReceivePause{
		Time: syncPauseResp.CurrentTime,
	}))

	return nil
}

type SyncSeekInput struct {
	RoomId  string  `json:"room_id" validate:"required"`
	NewTime float64 `json:"new_time"`
}

func (c *controller) handleSyncSeek(ctx context.Context, conn *websocket.Conn, input SyncSeekInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	syncSeekResp, err := c.roomService.SyncSeek(ctx, &room.SyncSeekParams{
		RoomId:  input.RoomId,
		NewTime: input.NewTime,
		Conn:    conn,
	})
	if err != nil {
		return fmt.Errorf("failed to sync seek: %w", err)
	}

	c.broadcast(ctx, syncSeekResp.Conns, c.newMessage(protocol.EventReceiveSeek, protocol.ReceiveSeek{
		Time: syncSeekResp.NewTime,
	}))

	return nil
}

type SyncSkipInput struct {
	RoomId string `json:"room_id" validate:"required"`
}

func (c *controller) handleSyncSkipForward(ctx context.Context, conn *websocket.Conn, input SyncSkipInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	syncSkipResp, err := c.roomService.SyncSkipForward(ctx, &room.SyncSkipParams{
		RoomId: input.RoomId,
		Conn:   conn,
	})
	if err != nil {
		return fmt.Errorf("failed to sync skip forward: %w", err)
	}

	// the increment is applied client side on the echo; the event carries
	// no time argument
	c.broadcast(ctx, syncSkipResp.Conns, c.newMessage(protocol.EventReceiveSkipForward, nil))

	return nil
}

func (c *controller) handleSyncSkipBackward(ctx context.Context, conn *websocket.Conn, input SyncSkipInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	syncSkipResp, err := c.roomService.SyncSkipBackward(ctx, &room.SyncSkipParams{
		RoomId: input.RoomId,
		Conn:   conn,
	})
	if err != nil {
		return fmt.Errorf("failed to sync skip backward: %w", err)
	}

	c.broadcast(ctx, syncSkipResp.Conns, c.newMessage(protocol.EventReceiveSkipBackward, nil))

	return nil
}

type SendChatInput struct {
	RoomId     string `json:"room_id" validate:"required"`
	SenderName string `json:"sender_name" validate:"required,max=64"`
	Text       string `json:"text" validate:"required,max=500"`
	AvatarURL  string `json:"avatar_url" validate:"max=512"`
}

func (c *controller) handleSendChat(ctx context.Context, conn *websocket.Conn, input SendChatInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	sendChatResp, err := c.roomService.SendChat(ctx, &room.SendChatParams{
		RoomId:     input.RoomId,
		SenderName: input.SenderName,
		Text:       input.Text,
		AvatarURL:  input.AvatarURL,
		Conn:       conn,
	})
	if err != nil {
		return fmt.Errorf("failed to send chat: %w", err)
	}

	c.broadcast(ctx, sendChatResp.Conns, c.newMessage(protocol.EventReceiveChat, protocol.ReceiveChat{
		User:   input.SenderName,
		Text:   input.Text,
		Avatar: input.AvatarURL,
	}))

	return nil
}

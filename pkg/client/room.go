package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zeldris273/watchparty/pkg/protocol"
)

const defaultJoinTimeout = 5 * time.Second

// State is the lifecycle position of a RoomClient.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoining
	StateSessionWaiting
	StateSessionActive
	StateSessionEnded
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoining:
		return "joining"
	case StateSessionWaiting:
		return "session_waiting"
	case StateSessionActive:
		return "session_active"
	case StateSessionEnded:
		return "session_ended"
	default:
		return "unknown"
	}
}

// RoomInfo is the static description of the joined room.
type RoomInfo struct {
	RoomId             string
	HostUserId         string
	HostDisplayName    string
	HostAvatarURL      string
	CreatedAt          int64
	MovieData          json.RawMessage
	AutoStart          bool
	ScheduledStartTime int64
}

// CreateIntent asks the hub to create the room before joining it. The
// creator becomes the host.
type CreateIntent struct {
	MovieData          json.RawMessage
	AutoStart          bool
	ScheduledStartTime int64
	IsPrivate          bool
}

type transport interface {
	Connect(ctx context.Context) error
	Invoke(ctx context.Context, event string, payload any) error
	On(event string, handler EventHandler)
	SetOnReconnect(f func())
	Disconnect() error
}

type Options struct {
	RoomId string
	UserId string
	// DisplayName and AvatarURL identify this viewer in chat.
	DisplayName string
	AvatarURL   string
	// Create, when set, creates the room on Join instead of joining an
	// existing one.
	Create *CreateIntent
	// Player, when set, is attached before joining. It can also be
	// attached later with AttachPlayer.
	Player Player
	// JoinTimeout bounds the wait for the room snapshot.
	JoinTimeout time.Duration

	OnStateChange func(State)
	OnError       func(error)
	Logger        *slog.Logger
}

// RoomClient ties the transport, the playback synchronizer and the
// chat log together into one room session. It rejoins automatically
// after a reconnect.
type RoomClient struct {
	transport   transport
	roomId      string
	userId      string
	displayName string
	avatarURL   string
	create      *CreateIntent
	joinTimeout time.Duration

	onStateChange func(State)
	onError       func(error)
	logger        *slog.Logger

	sync *synchronizer
	chat chatLog

	mu          sync.Mutex
	state       State
	isHost      bool
	info        RoomInfo
	viewerCount int
	peers       []protocol.ReceiveUserProfile
	joinCh      chan protocol.JoinedRoom
	createCh    chan protocol.RoomCreated
}

func NewRoomClient(t transport, opts Options) (*RoomClient, error) {
	if opts.RoomId == "" {
		return nil, errors.New("room id is required")
	}
	if opts.UserId == "" {
		return nil, errors.New("user id is required")
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = defaultJoinTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &RoomClient{
		transport:     t,
		roomId:        opts.RoomId,
		userId:        opts.UserId,
		displayName:   opts.DisplayName,
		avatarURL:     opts.AvatarURL,
		create:        opts.Create,
		joinTimeout:   opts.JoinTimeout,
		onStateChange: opts.OnStateChange,
		onError:       opts.OnError,
		logger:        opts.Logger,
		sync:          newSynchronizer(opts.Logger),
		state:         StateDisconnected,
	}

	if opts.Player != nil {
		c.sync.Attach(opts.Player)
	}

	c.registerHandlers()
	t.SetOnReconnect(c.rejoin)

	return c, nil
}

// Join connects to the hub, creates the room if a CreateIntent was
// given, and joins it. On return the client holds the room snapshot
// and is in SessionWaiting or SessionActive.
func (c *RoomClient) Join(ctx context.Context) error {
	c.setState(StateConnecting)

	if err := c.transport.Connect(ctx); err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect: %w", err)
	}

	if c.create != nil {
		if err := c.createRoom(ctx); err != nil {
			c.transport.Disconnect()
			c.setState(StateDisconnected)
			return err
		}
	}

	if err := c.join(ctx); err != nil {
		c.transport.Disconnect()
		c.setState(StateDisconnected)
		return err
	}

	return nil
}

func (c *RoomClient) createRoom(ctx context.Context) error {
	createCh := make(chan protocol.RoomCreated, 1)
	c.mu.Lock()
	c.createCh = createCh
	c.mu.Unlock()

	err := c.transport.Invoke(ctx, protocol.EventCreateRoom, protocol.CreateRoom{
		RoomId:             c.roomId,
		HostUserId:         c.userId,
		MovieData:          c.create.MovieData,
		AutoStart:          c.create.AutoStart,
		ScheduledStartTime: c.create.ScheduledStartTime,
		IsPrivate:          c.create.IsPrivate,
	})
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	select {
	case created := <-createCh:
		if !created.Success {
			return fmt.Errorf("%w: %s", ErrRoomCreateFailed, created.ErrorMessage)
		}
		return nil
	case <-time.After(c.joinTimeout):
		return fmt.Errorf("room creation: %w", ErrJoinTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RoomClient) join(ctx context.Context) error {
	joinCh := make(chan protocol.JoinedRoom, 1)
	c.mu.Lock()
	c.joinCh = joinCh
	c.mu.Unlock()

	c.setState(StateJoining)

	err := c.transport.Invoke(ctx, protocol.EventJoinRoom, protocol.JoinRoom{
		RoomId: c.roomId,
		UserId: c.userId,
	})
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	select {
	case snap := <-joinCh:
		c.applySnapshot(snap)
		return nil
	case <-time.After(c.joinTimeout):
		return ErrJoinTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rejoin runs after the transport has reestablished the channel. The
// hub treats it as a fresh join under the same user id, so the viewer
// count does not double.
func (c *RoomClient) rejoin() {
	ctx, cancel := context.WithTimeout(context.Background(), c.joinTimeout)
	defer cancel()

	if err := c.join(ctx); err != nil {
		c.reportError(fmt.Errorf("failed to rejoin room: %w", err))
	}
}

func (c *RoomClient) applySnapshot(snap protocol.JoinedRoom) {
	c.mu.Lock()
	c.isHost = snap.IsHost
	c.info = RoomInfo{
		RoomId:             snap.RoomId,
		HostUserId:         snap.HostUserId,
		HostDisplayName:    snap.HostDisplayName,
		HostAvatarURL:      snap.HostAvatarURL,
		CreatedAt:          snap.CreatedAt,
		MovieData:          snap.MovieData,
		AutoStart:          snap.AutoStart,
		ScheduledStartTime: snap.ScheduledStartTime,
	}
	c.viewerCount = snap.ViewerCount
	c.mu.Unlock()

	if snap.Started {
		c.sync.ApplyRemoteState(snap.IsPlaying, snap.CurrentTime)
		c.setState(StateSessionActive)
	} else {
		c.setState(StateSessionWaiting)
	}
}

func (c *RoomClient) registerHandlers() {
	c.transport.On(protocol.EventJoinedRoom, func(payload json.RawMessage) {
		var snap protocol.JoinedRoom
		if !c.decode(payload, &snap, protocol.EventJoinedRoom) {
			return
		}

		c.mu.Lock()
		ch := c.joinCh
		c.joinCh = nil
		c.mu.Unlock()

		if ch != nil {
			ch <- snap
			return
		}
		c.applySnapshot(snap)
	})

	c.transport.On(protocol.EventRoomCreated, func(payload json.RawMessage) {
		var created protocol.RoomCreated
		if !c.decode(payload, &created, protocol.EventRoomCreated) {
			return
		}

		c.mu.Lock()
		ch := c.createCh
		c.createCh = nil
		c.mu.Unlock()

		if ch != nil {
			ch <- created
		}
	})

	c.transport.On(protocol.EventReceiveStartSession, func(payload json.RawMessage) {
		c.sync.ApplyStart()
		c.setState(StateSessionActive)
	})

	c.transport.On(protocol.EventReceiveEndSession, func(payload json.RawMessage) {
		c.sync.ApplyEnd()
		c.setState(StateSessionEnded)
		c.transport.Disconnect()
	})

	c.transport.On(protocol.EventReceivePlay, func(payload json.RawMessage) {
		var ev protocol.ReceivePlay
		if c.decode(payload, &ev, protocol.EventReceivePlay) {
			c.sync.ApplyPlay(ev.Time)
		}
	})

	c.transport.On(protocol.EventReceivePause, func(payload json.RawMessage) {
		var ev protocol.ReceivePause
		if c.decode(payload, &ev, protocol.EventReceivePause) {
			c.sync.ApplyPause(ev.Time)
		}
	})

	c.transport.On(protocol.EventReceiveSeek, func(payload json.RawMessage) {
		var ev protocol.ReceiveSeek
		if c.decode(payload, &ev, protocol.EventReceiveSeek) {
			c.sync.ApplySeek(ev.Time)
		}
	})

	c.transport.On(protocol.EventReceiveSkipForward, func(payload json.RawMessage) {
		c.sync.ApplySkip(protocol.SkipSeconds)
	})

	c.transport.On(protocol.EventReceiveSkipBackward, func(payload json.RawMessage) {
		c.sync.ApplySkip(-protocol.SkipSeconds)
	})

	c.transport.On(protocol.EventViewerCountUpdated, func(payload json.RawMessage) {
		var ev protocol.ViewerCountUpdated
		if !c.decode(payload, &ev, protocol.EventViewerCountUpdated) {
			return
		}

		c.mu.Lock()
		c.viewerCount = ev.Count
		c.mu.Unlock()
	})

	c.transport.On(protocol.EventReceiveUserProfile, func(payload json.RawMessage) {
		var ev protocol.ReceiveUserProfile
		if !c.decode(payload, &ev, protocol.EventReceiveUserProfile) {
			return
		}

		c.mu.Lock()
		c.peers = append(c.peers, ev)
		c.mu.Unlock()
	})

	c.transport.On(protocol.EventReceiveChat, func(payload json.RawMessage) {
		var ev protocol.ReceiveChat
		if c.decode(payload, &ev, protocol.EventReceiveChat) {
			c.chat.appendUser(ev.User, ev.Text, ev.Avatar)
		}
	})

	c.transport.On(protocol.EventReceiveSystemMessage, func(payload json.RawMessage) {
		var ev protocol.ReceiveSystemMessage
		if c.decode(payload, &ev, protocol.EventReceiveSystemMessage) {
			c.chat.appendSystem(ev.Message)
		}
	})

	c.transport.On(protocol.EventError, func(payload json.RawMessage) {
		var ev protocol.Error
		if c.decode(payload, &ev, protocol.EventError) {
			c.reportError(errors.New(ev.Message))
		}
	})
}

func (c *RoomClient) decode(payload json.RawMessage, v any, event string) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		c.logger.Warn("malformed event payload", "type", event, "error", err)
		return false
	}
	return true
}

func (c *RoomClient) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	cb := c.onStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

func (c *RoomClient) reportError(err error) {
	c.logger.Warn("room error", "error", err)
	if c.onError != nil {
		c.onError(err)
	}
}

// Play asks the hub to start playback at the local playhead. The hub
// enforces that only the host may do this.
func (c *RoomClient) Play(ctx context.Context) error {
	return c.transport.Invoke(ctx, protocol.EventSyncPlay, protocol.SyncPlay{
		RoomId:      c.roomId,
		CurrentTime: c.sync.CurrentTime(),
		Duration:    c.sync.Duration(),
	})
}

func (c *RoomClient) Pause(ctx context.Context) error {
	return c.transport.Invoke(ctx, protocol.EventSyncPause, protocol.SyncPause{
		RoomId:      c.roomId,
		CurrentTime: c.sync.CurrentTime(),
		Duration:    c.sync.Duration(),
	})
}

// SeekPercent asks the hub to move the room playhead to percent
// (0-100) of the local player's duration.
func (c *RoomClient) SeekPercent(ctx context.Context, percent int) error {
	return c.transport.Invoke(ctx, protocol.EventSyncSeek, protocol.SyncSeek{
		RoomId:  c.roomId,
		NewTime: c.sync.SeekTarget(percent),
	})
}

func (c *RoomClient) SkipForward(ctx context.Context) error {
	return c.transport.Invoke(ctx, protocol.EventSyncSkipForward, protocol.SyncSkip{
		RoomId: c.roomId,
	})
}

func (c *RoomClient) SkipBackward(ctx context.Context) error {
	return c.transport.Invoke(ctx, protocol.EventSyncSkipBackward, protocol.SyncSkip{
		RoomId: c.roomId,
	})
}

func (c *RoomClient) StartSession(ctx context.Context) error {
	return c.transport.Invoke(ctx, protocol.EventStartSession, protocol.StartSession{
		RoomId: c.roomId,
	})
}

// EndSession asks the hub to destroy the room. The hub notifies and
// disconnects the other members; on a successful ack this client winds
// itself down locally.
func (c *RoomClient) EndSession(ctx context.Context) error {
	err := c.transport.Invoke(ctx, protocol.EventEndSession, protocol.EndSession{
		RoomId: c.roomId,
	})
	if err != nil {
		return err
	}

	c.sync.ApplyEnd()
	c.setState(StateSessionEnded)
	c.transport.Disconnect()

	return nil
}

func (c *RoomClient) SendChat(ctx context.Context, text string) error {
	return c.transport.Invoke(ctx, protocol.EventSendChat, protocol.SendChat{
		RoomId:     c.roomId,
		SenderName: c.displayName,
		Text:       text,
		AvatarURL:  c.avatarURL,
	})
}

// Leave tears the session down locally. The hub notices the dropped
// connection and updates the room.
func (c *RoomClient) Leave() error {
	err := c.transport.Disconnect()
	c.setState(StateDisconnected)
	return err
}

// AttachPlayer binds a player; playback commands received before this
// point are replayed onto it in order.
func (c *RoomClient) AttachPlayer(p Player) {
	c.sync.Attach(p)
}

// LoadSource points the player at a stream URL, typically taken from
// the room's movie payload. Queued like any other playback command if
// no player is attached yet.
func (c *RoomClient) LoadSource(url string) {
	c.sync.LoadSource(url)
}

// SelectQuality is a local control; quality choices are not
// synchronized across the room.
func (c *RoomClient) SelectQuality(index int) {
	c.sync.SelectQuality(index)
}

func (c *RoomClient) QualityLevels() []QualityLevel {
	return c.sync.Levels()
}

func (c *RoomClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *RoomClient) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHost
}

func (c *RoomClient) Info() RoomInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *RoomClient) ViewerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewerCount
}

// Peers lists the profiles of viewers that joined after this client.
func (c *RoomClient) Peers() []protocol.ReceiveUserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]protocol.ReceiveUserProfile, len(c.peers))
	copy(out, c.peers)
	return out
}

// Chat returns a copy of the chat log in arrival order.
func (c *RoomClient) Chat() []ChatEntry {
	return c.chat.snapshot()
}

func (c *RoomClient) IsPlaying() bool {
	return c.sync.IsPlaying()
}

package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeldris273/watchparty/pkg/protocol"
)

type invocation struct {
	event   string
	payload any
}

// fakeTransport replays scripted hub responses synchronously inside
// Invoke, which is enough because the client's wait channels are
// buffered.
type fakeTransport struct {
	mu           sync.Mutex
	handlers     map[string]EventHandler
	invocations  []invocation
	onReconnect  func()
	connectErr   error
	invokeErr    map[string]error
	respond      func(f *fakeTransport, event string, payload any)
	disconnected int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers:  make(map[string]EventHandler),
		invokeErr: make(map[string]error),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeTransport) Invoke(ctx context.Context, event string, payload any) error {
	f.mu.Lock()
	f.invocations = append(f.invocations, invocation{event: event, payload: payload})
	respond := f.respond
	err := f.invokeErr[event]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if respond != nil {
		respond(f, event, payload)
	}
	return nil
}

func (f *fakeTransport) On(event string, handler EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = handler
}

func (f *fakeTransport) SetOnReconnect(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReconnect = hook
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected++
	return nil
}

func (f *fakeTransport) emit(t *testing.T, event string, v any) {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)

	f.mu.Lock()
	handler := f.handlers[event]
	f.mu.Unlock()
	require.NotNil(t, handler, "no handler registered for %s", event)

	handler(b)
}

func (f *fakeTransport) invoked(event string) []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []invocation
	for _, inv := range f.invocations {
		if inv.event == event {
			out = append(out, inv)
		}
	}
	return out
}

func respondWithSnapshot(snap protocol.JoinedRoom) func(*fakeTransport, string, any) {
	return func(f *fakeTransport, event string, payload any) {
		switch event {
		case protocol.EventCreateRoom:
			f.handlers[protocol.EventRoomCreated].mustEmit(protocol.RoomCreated{
				RoomId:  snap.RoomId,
				Success: true,
			})
		case protocol.EventJoinRoom:
			f.handlers[protocol.EventJoinedRoom].mustEmit(snap)
		}
	}
}

func (h EventHandler) mustEmit(v any) {
	b, _ := json.Marshal(v)
	h(b)
}

func TestJoinAppliesSnapshot(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondWithSnapshot(protocol.JoinedRoom{
		RoomId:          "room-1",
		IsHost:          false,
		HostUserId:      "host-1",
		HostDisplayName: "host",
		ViewerCount:     3,
		MovieData:       json.RawMessage(`{"title":"movie"}`),
	})

	var states []State
	c, err := NewRoomClient(ft, Options{
		RoomId:        "room-1",
		UserId:        "viewer-1",
		OnStateChange: func(s State) { states = append(states, s) },
	})
	require.NoError(t, err)

	p := &fakePlayer{duration: 7200}
	c.AttachPlayer(p)

	require.NoError(t, c.Join(context.Background()))

	assert.Equal(t, StateSessionWaiting, c.State())
	assert.False(t, c.IsHost())
	assert.Equal(t, 3, c.ViewerCount())
	assert.Equal(t, "host-1", c.Info().HostUserId)
	assert.False(t, p.playing, "an unstarted session must not touch the player")
	assert.Equal(t, []State{StateConnecting, StateJoining, StateSessionWaiting}, states)

	joins := ft.invoked(protocol.EventJoinRoom)
	require.Len(t, joins, 1)
	assert.Equal(t, protocol.JoinRoom{RoomId: "room-1", UserId: "viewer-1"}, joins[0].payload)
}

func TestLateJoinPicksUpSession(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondWithSnapshot(protocol.JoinedRoom{
		RoomId:      "room-1",
		Started:     true,
		IsPlaying:   true,
		CurrentTime: 130,
	})

	c, err := NewRoomClient(ft, Options{RoomId: "room-1", UserId: "viewer-1"})
	require.NoError(t, err)

	p := &fakePlayer{duration: 7200}
	c.AttachPlayer(p)

	require.NoError(t, c.Join(context.Background()))

	assert.Equal(t, StateSessionActive, c.State())
	assert.True(t, p.playing, "a late joiner must pick up a running session")
	assert.Equal(t, 130.0, p.time)
}

func TestJoinTimeout(t *testing.T) {
	ft := newFakeTransport() // never responds

	c, err := NewRoomClient(ft, Options{
		RoomId:      "room-1",
		UserId:      "viewer-1",
		JoinTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	err = c.Join(context.Background())
	assert.ErrorIs(t, err, ErrJoinTimeout)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, ft.disconnected, "a failed join must tear the channel down")
}

func TestCreateIntent(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondWithSnapshot(protocol.JoinedRoom{RoomId: "room-1", IsHost: true})

	c, err := NewRoomClient(ft, Options{
		RoomId: "room-1",
		UserId: "host-1",
		Create: &CreateIntent{
			MovieData: json.RawMessage(`{"title":"movie"}`),
			AutoStart: true,
		},
	})
	require.NoError(t, err)

	require.NoError(t, c.Join(context.Background()))
	assert.True(t, c.IsHost())

	creates := ft.invoked(protocol.EventCreateRoom)
	require.Len(t, creates, 1)
	create := creates[0].payload.(protocol.CreateRoom)
	assert.Equal(t, "room-1", create.RoomId)
	assert.Equal(t, "host-1", create.HostUserId)
	assert.True(t, create.AutoStart)

	require.Len(t, ft.invocations, 2)
	assert.Equal(t, protocol.EventCreateRoom, ft.invocations[0].event, "creation must precede the join")
	assert.Equal(t, protocol.EventJoinRoom, ft.invocations[1].event)
}

func TestCreateFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = func(f *fakeTransport, event string, payload any) {
		if event == protocol.EventCreateRoom {
			f.handlers[protocol.EventRoomCreated].mustEmit(protocol.RoomCreated{
				Success:      false,
				ErrorMessage: "room already exists",
			})
		}
	}

	c, err := NewRoomClient(ft, Options{
		RoomId: "room-1",
		UserId: "host-1",
		Create: &CreateIntent{},
	})
	require.NoError(t, err)

	err = c.Join(context.Background())
	assert.ErrorIs(t, err, ErrRoomCreateFailed)
	assert.ErrorContains(t, err, "room already exists")
	assert.Equal(t, StateDisconnected, c.State())
	assert.Empty(t, ft.invoked(protocol.EventJoinRoom), "a failed creation must not be followed by a join")
}

func joinedClient(t *testing.T, ft *fakeTransport, snap protocol.JoinedRoom) (*RoomClient, *fakePlayer) {
	t.Helper()

	ft.respond = respondWithSnapshot(snap)

	c, err := NewRoomClient(ft, Options{
		RoomId:      snap.RoomId,
		UserId:      "viewer-1",
		DisplayName: "alice",
		AvatarURL:   "https://cdn/avatar.png",
	})
	require.NoError(t, err)

	p := &fakePlayer{duration: 7200}
	c.AttachPlayer(p)

	require.NoError(t, c.Join(context.Background()))

	return c, p
}

func TestPlaybackEvents(t *testing.T) {
	ft := newFakeTransport()
	c, p := joinedClient(t, ft, protocol.JoinedRoom{RoomId: "room-1"})

	ft.emit(t, protocol.EventReceiveStartSession, nil)
	assert.Equal(t, StateSessionActive, c.State())
	assert.True(t, p.playing)
	assert.Equal(t, 0.0, p.time)

	ft.emit(t, protocol.EventReceivePlay, protocol.ReceivePlay{Time: 100})
	assert.Equal(t, 100.0, p.time)
	assert.True(t, p.playing)

	ft.emit(t, protocol.EventReceivePause, protocol.ReceivePause{Time: 110})
	assert.Equal(t, 110.0, p.time)
	assert.False(t, p.playing)

	ft.emit(t, protocol.EventReceiveSeek, protocol.ReceiveSeek{Time: 500})
	assert.Equal(t, 500.0, p.time)

	ft.emit(t, protocol.EventReceiveSkipForward, nil)
	assert.Equal(t, 505.0, p.time)

	ft.emit(t, protocol.EventReceiveSkipBackward, nil)
	assert.Equal(t, 500.0, p.time)
}

func TestEndSessionEvent(t *testing.T) {
	ft := newFakeTransport()
	c, p := joinedClient(t, ft, protocol.JoinedRoom{RoomId: "room-1", Started: true, IsPlaying: true})

	ft.emit(t, protocol.EventReceiveEndSession, nil)
	assert.Equal(t, StateSessionEnded, c.State())
	assert.False(t, p.playing)
	assert.Equal(t, 1, ft.disconnected)
}

func TestChatAndPresence(t *testing.T) {
	ft := newFakeTransport()
	c, _ := joinedClient(t, ft, protocol.JoinedRoom{RoomId: "room-1", ViewerCount: 1})

	ft.emit(t, protocol.EventReceiveChat, protocol.ReceiveChat{User: "bob", Text: "hi", Avatar: "a.png"})
	ft.emit(t, protocol.EventReceiveSystemMessage, protocol.ReceiveSystemMessage{Message: "bob joined the room"})
	ft.emit(t, protocol.EventReceiveChat, protocol.ReceiveChat{User: "alice", Text: "hello"})
	ft.emit(t, protocol.EventViewerCountUpdated, protocol.ViewerCountUpdated{Count: 2})
	ft.emit(t, protocol.EventReceiveUserProfile, protocol.ReceiveUserProfile{DisplayName: "bob", AvatarURL: "a.png"})

	entries := c.Chat()
	require.Len(t, entries, 3)
	assert.Equal(t, ChatEntry{Sender: "bob", AvatarURL: "a.png", Text: "hi"}, entries[0])
	assert.True(t, entries[1].System)
	assert.Equal(t, "bob joined the room", entries[1].Text)
	assert.Equal(t, "alice", entries[2].Sender)

	assert.Equal(t, 2, c.ViewerCount())

	peers := c.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "bob", peers[0].DisplayName)
}

func TestErrorEventCallback(t *testing.T) {
	ft := newFakeTransport()
	ft.respond = respondWithSnapshot(protocol.JoinedRoom{RoomId: "room-1"})

	var got error
	c, err := NewRoomClient(ft, Options{
		RoomId:  "room-1",
		UserId:  "viewer-1",
		OnError: func(e error) { got = e },
	})
	require.NoError(t, err)
	require.NoError(t, c.Join(context.Background()))

	ft.emit(t, protocol.EventError, protocol.Error{Message: "permission denied"})
	require.Error(t, got)
	assert.Equal(t, "permission denied", got.Error())
}

func TestReconnectRejoins(t *testing.T) {
	ft := newFakeTransport()
	c, p := joinedClient(t, ft, protocol.JoinedRoom{RoomId: "room-1", ViewerCount: 1})

	// the hub has moved on while we were away
	ft.respond = respondWithSnapshot(protocol.JoinedRoom{
		RoomId:      "room-1",
		ViewerCount: 2,
		Started:     true,
		IsPlaying:   true,
		CurrentTime: 300,
	})

	require.NotNil(t, ft.onReconnect)
	ft.onReconnect()

	assert.Len(t, ft.invoked(protocol.EventJoinRoom), 2, "a reconnect must rejoin under the same user id")
	assert.Equal(t, StateSessionActive, c.State())
	assert.Equal(t, 2, c.ViewerCount())
	assert.Equal(t, 300.0, p.time)
	assert.True(t, p.playing)
}

func TestHostCommands(t *testing.T) {
	ft := newFakeTransport()
	c, p := joinedClient(t, ft, protocol.JoinedRoom{RoomId: "room-1", IsHost: true})
	ctx := context.Background()

	p.time = 42.5
	require.NoError(t, c.Play(ctx))
	plays := ft.invoked(protocol.EventSyncPlay)
	require.Len(t, plays, 1)
	assert.Equal(t, protocol.SyncPlay{RoomId: "room-1", CurrentTime: 42.5, Duration: 7200}, plays[0].payload)

	require.NoError(t, c.Pause(ctx))
	pauses := ft.invoked(protocol.EventSyncPause)
	require.Len(t, pauses, 1)

	require.NoError(t, c.SeekPercent(ctx, 50))
	seeks := ft.invoked(protocol.EventSyncSeek)
	require.Len(t, seeks, 1)
	assert.Equal(t, protocol.SyncSeek{RoomId: "room-1", NewTime: 3600}, seeks[0].payload)

	require.NoError(t, c.SkipForward(ctx))
	require.NoError(t, c.SkipBackward(ctx))
	assert.Len(t, ft.invoked(protocol.EventSyncSkipForward), 1)
	assert.Len(t, ft.invoked(protocol.EventSyncSkipBackward), 1)

	require.NoError(t, c.StartSession(ctx))
	assert.Len(t, ft.invoked(protocol.EventStartSession), 1)

	require.NoError(t, c.SendChat(ctx, "hello"))
	chats := ft.invoked(protocol.EventSendChat)
	require.Len(t, chats, 1)
	assert.Equal(t, protocol.SendChat{
		RoomId:     "room-1",
		SenderName: "alice",
		Text:       "hello",
		AvatarURL:  "https://cdn/avatar.png",
	}, chats[0].payload)

	// a successfully ended session winds the client down locally
	require.NoError(t, c.EndSession(ctx))
	assert.Equal(t, StateSessionEnded, c.State())
	assert.Equal(t, 1, ft.disconnected)
}

func TestHostCommandRejected(t *testing.T) {
	ft := newFakeTransport()
	c, _ := joinedClient(t, ft, protocol.JoinedRoom{RoomId: "room-1"})

	ft.invokeErr[protocol.EventSyncPlay] = ErrInvokeRejected

	err := c.Play(context.Background())
	assert.ErrorIs(t, err, ErrInvokeRejected, "the hub is the authority on host permissions")
}

func TestLeave(t *testing.T) {
	ft := newFakeTransport()
	c, _ := joinedClient(t, ft, protocol.JoinedRoom{RoomId: "room-1"})

	require.NoError(t, c.Leave())
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, ft.disconnected)
}

func TestNewRoomClientValidation(t *testing.T) {
	_, err := NewRoomClient(newFakeTransport(), Options{UserId: "u"})
	assert.Error(t, err)

	_, err = NewRoomClient(newFakeTransport(), Options{RoomId: "r"})
	assert.Error(t, err)
}

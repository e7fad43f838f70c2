package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeldris273/watchparty/internal/controller"
	"github.com/zeldris273/watchparty/internal/repository/connection/inmemory"
	roomRedis "github.com/zeldris273/watchparty/internal/repository/room/redis"
	"github.com/zeldris273/watchparty/internal/service/room"
	"github.com/zeldris273/watchparty/pkg/client"
)

type stubPlayer struct {
	mu      sync.Mutex
	playing bool
	time    float64
}

func (p *stubPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
}

func (p *stubPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *stubPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time
}

func (p *stubPlayer) SetCurrentTime(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.time = seconds
}

func (p *stubPlayer) Duration() float64 { return 7200 }

func (p *stubPlayer) LoadSource(url string) {}

func (p *stubPlayer) Levels() []client.QualityLevel { return nil }

func (p *stubPlayer) SetQualityLevel(index int) {}

func (p *stubPlayer) state() (bool, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing, p.time
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{
		Addr: s.Addr(),
	})

	roomRepo := roomRedis.NewRepo(rc, time.Hour)
	connRepo := inmemory.NewRepo()
	roomService := room.NewService(roomRepo, connRepo, 25, slog.Default())
	ctrl := controller.NewController(roomService, slog.Default())
	t.Cleanup(ctrl.Close)

	srv := httptest.NewServer(ctrl.GetMux())
	t.Cleanup(srv.Close)

	return srv
}

func wsURL(srv *httptest.Server, displayName string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?display-name=" + displayName
}

func newRoomClient(t *testing.T, srv *httptest.Server, opts client.Options) *client.RoomClient {
	t.Helper()

	tr := client.NewTransport(client.TransportOptions{
		URL: wsURL(srv, opts.DisplayName),
	})

	c, err := client.NewRoomClient(tr, opts)
	require.NoError(t, err)

	return c
}

// TestWatchPartyEndToEnd drives a full session through the real stack:
// hub, redis repository and websocket clients.
func TestWatchPartyEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	hostPlayer := &stubPlayer{}
	host := newRoomClient(t, srv, client.Options{
		RoomId:      "room-1",
		UserId:      "host-1",
		DisplayName: "host",
		Player:      hostPlayer,
		Create: &client.CreateIntent{
			MovieData: json.RawMessage(`{"title":"movie"}`),
		},
	})
	require.NoError(t, host.Join(ctx))
	require.True(t, host.IsHost())
	assert.Equal(t, client.StateSessionWaiting, host.State())
	assert.Equal(t, 1, host.ViewerCount())

	viewerPlayer := &stubPlayer{}
	viewer := newRoomClient(t, srv, client.Options{
		RoomId:      "room-1",
		UserId:      "viewer-1",
		DisplayName: "alice",
		Player:      viewerPlayer,
	})
	require.NoError(t, viewer.Join(ctx))
	assert.False(t, viewer.IsHost())
	assert.Equal(t, 2, viewer.ViewerCount())
	assert.Equal(t, "host-1", viewer.Info().HostUserId)

	// the host sees the join announcement
	require.Eventually(t, func() bool {
		return host.ViewerCount() == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		entries := host.Chat()
		return len(entries) == 1 && entries[0].System
	}, 2*time.Second, 10*time.Millisecond)

	// a viewer cannot drive playback
	err := viewer.StartSession(ctx)
	assert.ErrorIs(t, err, client.ErrInvokeRejected)

	require.NoError(t, host.StartSession(ctx))
	require.Eventually(t, func() bool {
		playing, pos := viewerPlayer.state()
		return viewer.State() == client.StateSessionActive && playing && pos == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return host.State() == client.StateSessionActive
	}, 2*time.Second, 10*time.Millisecond)

	hostPlayer.SetCurrentTime(100)
	require.NoError(t, host.Pause(ctx))
	require.Eventually(t, func() bool {
		playing, pos := viewerPlayer.state()
		return !playing && pos == 100
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, host.SkipForward(ctx))
	require.Eventually(t, func() bool {
		_, pos := viewerPlayer.state()
		return pos == 105
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, viewer.SendChat(ctx, "hello"))
	require.Eventually(t, func() bool {
		for _, entry := range host.Chat() {
			if entry.Sender == "alice" && entry.Text == "hello" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, host.EndSession(ctx))
	require.Eventually(t, func() bool {
		return viewer.State() == client.StateSessionEnded
	}, 2*time.Second, 10*time.Millisecond)
	playing, _ := viewerPlayer.state()
	assert.False(t, playing)
}

func TestAppConfigValidate(t *testing.T) {
	cfg := AppConfig{
		ViewersLimit:      25,
		RoomTTLHours:      24,
		AutoStartInterval: 5,
	}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.ViewersLimit = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.RoomTTLHours = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.AutoStartInterval = 0
	assert.Error(t, bad.Validate())
}

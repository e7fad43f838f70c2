package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeldris273/watchparty/pkg/protocol"
)

// testHub is a minimal hub: it runs handle per inbound message and can
// push events and drop connections on demand.
type testHub struct {
	t      *testing.T
	srv    *httptest.Server
	handle func(conn *websocket.Conn, msg protocol.Envelope)

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newTestHub(t *testing.T, handle func(conn *websocket.Conn, msg protocol.Envelope)) *testHub {
	t.Helper()

	h := &testHub{t: t, handle: handle}
	upgrader := websocket.Upgrader{}

	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		h.mu.Lock()
		h.conns = append(h.conns, conn)
		h.mu.Unlock()

		for {
			var msg protocol.Envelope
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if h.handle != nil {
				h.handle(conn, msg)
			}
		}
	}))
	t.Cleanup(h.srv.Close)

	return h
}

func (h *testHub) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *testHub) push(conn *websocket.Conn, event string, v any) {
	b, err := json.Marshal(v)
	require.NoError(h.t, err)
	require.NoError(h.t, conn.WriteJSON(protocol.Envelope{Type: event, Payload: b}))
}

func (h *testHub) ack(conn *websocket.Conn, msg protocol.Envelope, success bool, errMsg string) {
	h.push(conn, protocol.EventAck, protocol.Ack{Id: msg.Id, Success: success, Error: errMsg})
}

func (h *testHub) closeAll(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, conn := range h.conns {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
		conn.Close()
	}
	h.conns = nil
}

func (h *testHub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conn := range h.conns {
		conn.Close()
	}
	h.conns = nil
}

func TestInvokeAck(t *testing.T) {
	hub := newTestHub(t, nil)
	hub.handle = func(conn *websocket.Conn, msg protocol.Envelope) {
		switch msg.Type {
		case protocol.EventSendChat:
			hub.ack(conn, msg, true, "")
		case protocol.EventSyncPlay:
			hub.ack(conn, msg, false, "permission denied")
		}
	}

	tr := NewTransport(TransportOptions{URL: hub.url()})
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	err := tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{RoomId: "r", Text: "hi"})
	assert.NoError(t, err)

	err = tr.Invoke(context.Background(), protocol.EventSyncPlay, protocol.SyncPlay{RoomId: "r"})
	assert.ErrorIs(t, err, ErrInvokeRejected)
	assert.ErrorContains(t, err, "permission denied")
}

func TestInvokeTimeout(t *testing.T) {
	hub := newTestHub(t, nil) // swallows everything

	tr := NewTransport(TransportOptions{
		URL:           hub.url(),
		InvokeTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	err := tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{})
	assert.ErrorIs(t, err, ErrInvokeTimeout)
}

func TestInvokeRequiresConnection(t *testing.T) {
	tr := NewTransport(TransportOptions{URL: "ws://127.0.0.1:1/ws"})

	err := tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectFailure(t *testing.T) {
	tr := NewTransport(TransportOptions{URL: "ws://127.0.0.1:1/ws"})

	err := tr.Connect(context.Background())
	assert.Error(t, err)
}

func TestEventDispatch(t *testing.T) {
	hub := newTestHub(t, nil)
	hub.handle = func(conn *websocket.Conn, msg protocol.Envelope) {
		hub.ack(conn, msg, true, "")
		hub.push(conn, protocol.EventReceiveChat, protocol.ReceiveChat{User: "bob", Text: "hi"})
		hub.push(conn, "SomethingUnknown", nil)
		hub.push(conn, protocol.EventReceiveSeek, protocol.ReceiveSeek{Time: 42})
	}

	tr := NewTransport(TransportOptions{URL: hub.url()})

	chats := make(chan protocol.ReceiveChat, 1)
	tr.On(protocol.EventReceiveChat, func(payload json.RawMessage) {
		var ev protocol.ReceiveChat
		require.NoError(t, json.Unmarshal(payload, &ev))
		chats <- ev
	})

	seeks := make(chan protocol.ReceiveSeek, 1)
	tr.On(protocol.EventReceiveSeek, func(payload json.RawMessage) {
		var ev protocol.ReceiveSeek
		require.NoError(t, json.Unmarshal(payload, &ev))
		seeks <- ev
	})

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	require.NoError(t, tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{}))

	select {
	case ev := <-chats:
		assert.Equal(t, "bob", ev.User)
	case <-time.After(2 * time.Second):
		t.Fatal("chat event was not dispatched")
	}

	// the unknown event in between must not disturb the loop
	select {
	case ev := <-seeks:
		assert.Equal(t, 42.0, ev.Time)
	case <-time.After(2 * time.Second):
		t.Fatal("seek event was not dispatched")
	}
}

func TestPanickingHandlerDoesNotKillReadLoop(t *testing.T) {
	hub := newTestHub(t, nil)
	hub.handle = func(conn *websocket.Conn, msg protocol.Envelope) {
		hub.push(conn, protocol.EventReceivePlay, protocol.ReceivePlay{Time: 1})
		hub.push(conn, protocol.EventReceivePause, protocol.ReceivePause{Time: 2})
	}

	tr := NewTransport(TransportOptions{URL: hub.url(), InvokeTimeout: 100 * time.Millisecond})

	tr.On(protocol.EventReceivePlay, func(payload json.RawMessage) {
		panic("bad handler")
	})

	pauses := make(chan struct{}, 1)
	tr.On(protocol.EventReceivePause, func(payload json.RawMessage) {
		pauses <- struct{}{}
	})

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	// no ack expected; this only triggers the hub
	tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{})

	select {
	case <-pauses:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop died after handler panic")
	}
}

func TestLastHandlerWins(t *testing.T) {
	hub := newTestHub(t, nil)
	hub.handle = func(conn *websocket.Conn, msg protocol.Envelope) {
		hub.push(conn, protocol.EventReceivePlay, protocol.ReceivePlay{Time: 1})
	}

	tr := NewTransport(TransportOptions{URL: hub.url(), InvokeTimeout: 100 * time.Millisecond})

	first := make(chan struct{}, 1)
	tr.On(protocol.EventReceivePlay, func(payload json.RawMessage) {
		first <- struct{}{}
	})

	second := make(chan struct{}, 1)
	tr.On(protocol.EventReceivePlay, func(payload json.RawMessage) {
		second <- struct{}{}
	})

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{})

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}

	select {
	case <-first:
		t.Fatal("replaced handler must not run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReconnect(t *testing.T) {
	hub := newTestHub(t, nil)
	hub.handle = func(conn *websocket.Conn, msg protocol.Envelope) {
		hub.ack(conn, msg, true, "")
	}

	tr := NewTransport(TransportOptions{
		URL:        hub.url(),
		BackoffMin: 10 * time.Millisecond,
		BackoffMax: 50 * time.Millisecond,
	})

	reconnected := make(chan struct{}, 1)
	tr.SetOnReconnect(func() {
		reconnected <- struct{}{}
	})

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Disconnect()

	require.NoError(t, tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{}))

	hub.dropAll()

	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("transport did not reconnect")
	}

	// the reestablished channel carries invocations again
	require.NoError(t, tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{}))
}

func TestDisconnectIdempotent(t *testing.T) {
	hub := newTestHub(t, nil)

	tr := NewTransport(TransportOptions{URL: hub.url()})
	require.NoError(t, tr.Connect(context.Background()))

	require.NoError(t, tr.Disconnect())
	require.NoError(t, tr.Disconnect())

	err := tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{})
	assert.ErrorIs(t, err, ErrTransportClosed)

	err = tr.Connect(context.Background())
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestDisconnectStopsReconnection(t *testing.T) {
	hub := newTestHub(t, nil)

	tr := NewTransport(TransportOptions{
		URL:        hub.url(),
		BackoffMin: 10 * time.Millisecond,
		BackoffMax: 50 * time.Millisecond,
	})

	reconnected := make(chan struct{}, 8)
	tr.SetOnReconnect(func() {
		reconnected <- struct{}{}
	})

	require.NoError(t, tr.Connect(context.Background()))
	require.NoError(t, tr.Disconnect())

	hub.dropAll()

	select {
	case <-reconnected:
		t.Fatal("a torn down transport must not redial")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestInvokeWriteFailureSurfacesCause(t *testing.T) {
	hub := newTestHub(t, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(hub.url(), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	conn.Close()

	// wire the dead connection in directly so the write itself fails
	tr := NewTransport(TransportOptions{URL: hub.url()})
	tr.conn = conn
	tr.connected = true

	err = tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, err, net.ErrClosed, "the underlying write error must stay in the chain")
}

func TestDeliberateHubCloseStopsRedial(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"session ended", protocol.CloseSessionEnded},
		{"connection replaced", protocol.CloseConnReplaced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newTestHub(t, nil)

			tr := NewTransport(TransportOptions{
				URL:        hub.url(),
				BackoffMin: 10 * time.Millisecond,
				BackoffMax: 50 * time.Millisecond,
			})

			reconnected := make(chan struct{}, 8)
			tr.SetOnReconnect(func() {
				reconnected <- struct{}{}
			})

			require.NoError(t, tr.Connect(context.Background()))
			defer tr.Disconnect()

			hub.closeAll(tt.code)

			select {
			case <-reconnected:
				t.Fatal("a deliberately closed connection must not redial")
			case <-time.After(200 * time.Millisecond):
			}

			err := tr.Invoke(context.Background(), protocol.EventSendChat, protocol.SendChat{})
			assert.ErrorIs(t, err, ErrTransportClosed)
		})
	}
}

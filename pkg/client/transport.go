// Package client implements the viewer-side core of the watch party:
// a websocket transport with acked invocations and automatic
// reconnection, a room client state machine, a playback synchronizer
// and a chat/presence log. It carries no UI; a player frontend plugs
// in through the Player interface.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeldris273/watchparty/pkg/protocol"
)

const (
	defaultInvokeTimeout = 10 * time.Second
	defaultBackoffMin    = 500 * time.Millisecond
	defaultBackoffMax    = 15 * time.Second
)

// EventHandler consumes the raw payload of a hub event. Handlers run
// on the transport read loop, one at a time, in arrival order.
type EventHandler func(payload json.RawMessage)

type TransportOptions struct {
	// URL is the ws:// or wss:// endpoint of the hub.
	URL string
	// Header is attached to the websocket handshake request.
	Header http.Header
	// InvokeTimeout bounds the wait for an acknowledgement.
	InvokeTimeout time.Duration
	// BackoffMin and BackoffMax bound the reconnect delay.
	BackoffMin time.Duration
	BackoffMax time.Duration
	Logger     *slog.Logger
}

// Transport is a websocket channel to the hub. Outbound invocations
// carry a correlation id and block until the hub acknowledges them or
// the invoke timeout fires. After the first successful Connect, a
// dropped connection is redialed with capped exponential backoff until
// Disconnect is called.
type Transport struct {
	url           string
	header        http.Header
	dialer        *websocket.Dialer
	invokeTimeout time.Duration
	backoffMin    time.Duration
	backoffMax    time.Duration
	logger        *slog.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	connected   bool
	closed      bool
	handlers    map[string]EventHandler
	pending     map[string]chan protocol.Ack
	onReconnect func()

	// writeMu serializes writes to the underlying connection.
	writeMu sync.Mutex
}

func NewTransport(opts TransportOptions) *Transport {
	if opts.InvokeTimeout <= 0 {
		opts.InvokeTimeout = defaultInvokeTimeout
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = defaultBackoffMin
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Transport{
		url:           opts.URL,
		header:        opts.Header,
		dialer:        websocket.DefaultDialer,
		invokeTimeout: opts.InvokeTimeout,
		backoffMin:    opts.BackoffMin,
		backoffMax:    opts.BackoffMax,
		logger:        opts.Logger,
		handlers:      make(map[string]EventHandler),
		pending:       make(map[string]chan protocol.Ack),
	}
}

// On registers a handler for a hub event type. Registering a second
// handler for the same type replaces the first.
func (t *Transport) On(event string, handler EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers[event] = handler
}

// SetOnReconnect registers a hook invoked after the channel has been
// reestablished following a drop. The hook runs on its own goroutine.
func (t *Transport) SetOnReconnect(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.onReconnect = f
}

// Connect dials the hub. It does not retry: a failed initial dial is
// returned to the caller. Once established, drops are redialed
// automatically.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("failed to dial hub: %w", err)
	}

	t.attach(conn)

	return nil
}

func (t *Transport) attach(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	go t.readLoop(conn)
}

// Invoke sends an event to the hub and waits for its acknowledgement.
// A rejected ack is returned as ErrInvokeRejected wrapping the hub's
// message; a missing ack as ErrInvokeTimeout.
func (t *Transport) Invoke(ctx context.Context, event string, payload any) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if !t.connected {
		t.mu.Unlock()
		return ErrNotConnected
	}
	conn := t.conn

	id := uuid.NewString()
	ackCh := make(chan protocol.Ack, 1)
	t.pending[id] = ackCh
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	msg := protocol.Envelope{
		Id:      id,
		Type:    event,
		Payload: b,
	}

	t.writeMu.Lock()
	err = conn.WriteJSON(msg)
	t.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s: %w: %w", event, ErrNotConnected, err)
	}

	select {
	case ack := <-ackCh:
		if !ack.Success {
			return fmt.Errorf("%w: %s", ErrInvokeRejected, ack.Error)
		}
		return nil
	case <-time.After(t.invokeTimeout):
		return fmt.Errorf("%s: %w", event, ErrInvokeTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears the channel down and stops reconnection. It is
// idempotent.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.connected = false
	t.mu.Unlock()

	if conn != nil {
		t.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.writeMu.Unlock()
		conn.Close()
	}

	return nil
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	var terminal bool
	for {
		var msg protocol.Envelope
		if err := conn.ReadJSON(&msg); err != nil {
			// the hub closed the channel on purpose: the room is gone or
			// a newer connection took over this identity
			terminal = websocket.IsCloseError(err,
				protocol.CloseSessionEnded,
				protocol.CloseConnReplaced,
			)
			break
		}

		if msg.Type == protocol.EventAck {
			t.deliverAck(msg.Payload)
			continue
		}

		t.dispatch(msg)
	}

	conn.Close()

	t.mu.Lock()
	if t.closed || t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.connected = false
	if terminal {
		t.closed = true
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	go t.reconnectLoop()
}

func (t *Transport) deliverAck(payload json.RawMessage) {
	var ack protocol.Ack
	if err := json.Unmarshal(payload, &ack); err != nil {
		t.logger.Warn("malformed ack", "error", err)
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[ack.Id]
	t.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- ack:
	default:
	}
}

// dispatch runs the registered handler for an event. A panicking
// handler must not kill the read loop.
func (t *Transport) dispatch(msg protocol.Envelope) {
	t.mu.Lock()
	handler, ok := t.handlers[msg.Type]
	t.mu.Unlock()
	if !ok {
		t.logger.Debug("unhandled event", "type", msg.Type)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("event handler panicked", "type", msg.Type, "panic", r)
		}
	}()

	handler(msg.Payload)
}

func (t *Transport) reconnectLoop() {
	delay := t.backoffMin
	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		conn, resp, err := t.dialer.Dial(t.url, t.header)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			t.logger.Info("reconnect failed", "error", err, "retry_in", delay)
			time.Sleep(delay)
			delay *= 2
			if delay > t.backoffMax {
				delay = t.backoffMax
			}
			continue
		}

		t.attach(conn)

		t.mu.Lock()
		hook := t.onReconnect
		t.mu.Unlock()
		if hook != nil {
			go hook()
		}

		return
	}
}

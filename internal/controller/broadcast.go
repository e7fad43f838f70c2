package controller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeldris273/watchparty/internal/service/room"
	"github.com/zeldris273/watchparty/pkg/protocol"
	"github.com/zeldris273/watchparty/pkg/wsrouter"
)

func (c *controller) newMessage(eventType string, payload any) *wsrouter.Message {
	msg := wsrouter.Message{Type: eventType}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.logger.Warn("failed to marshal payload", "type", eventType, "error", err)
			return &msg
		}
		msg.Payload = b
	}

	return &msg
}

// All writes go through the single-worker pool: gorilla connections allow
// only one concurrent writer, and serializing the queue preserves the
// hub-side fan-out order every client relies on.
func (c *controller) broadcast(ctx context.Context, conns []*websocket.Conn, msg *wsrouter.Message) {
	c.pool.Submit(func() {
		for _, conn := range conns {
			if err := conn.WriteJSON(msg); err != nil {
				c.logger.DebugContext(ctx, "failed to write to conn", "type", msg.Type, "error", err)
			}
		}
	})
}

func (c *controller) writeToConn(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) {
	c.broadcast(ctx, []*websocket.Conn{conn}, msg)
}

func (c *controller) closeConns(ctx context.Context, conns []*websocket.Conn, code int) {
	c.pool.Submit(func() {
		deadline := time.Now().Add(5 * time.Second)
		for _, conn := range conns {
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
			conn.Close()
		}
	})
}

func (c *controller) sendAck(ctx context.Context, conn *websocket.Conn, id string, err error) {
	ack := protocol.Ack{Id: id, Success: err == nil}
	if err != nil {
		ack.Error = userMessage(err)
	}
	c.writeToConn(ctx, conn, c.newMessage(protocol.EventAck, ack))
}

func (c *controller) sendError(ctx context.Context, conn *websocket.Conn, err error) {
	c.writeToConn(ctx, conn, c.newMessage(protocol.EventError, protocol.Error{
		Message: userMessage(err),
	}))
}

// userMessage maps service errors to text safe to show a user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrPermissionDenied),
		errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrRoomAlreadyExists),
		errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrNotInRoom),
		errors.Is(err, errMalformedPayload),
		errors.Is(err, errValidation):
		return err.Error()
	default:
		return "internal error"
	}
}

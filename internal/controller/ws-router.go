package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/zeldris273/watchparty/pkg/protocol"
	"github.com/zeldris273/watchparty/pkg/wsrouter"
)

var (
	errMalformedPayload = errors.New("malformed payload")
	errValidation       = errors.New("validation failed")
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	// room lifecycle
	mux.Handle(protocol.EventCreateRoom, withInput(c, c.handleCreateRoom))
	mux.Handle(protocol.EventJoinRoom, withInput(c, c.handleJoinRoom))
	mux.Handle(protocol.EventStartSession, withInput(c, c.handleStartSession))
	mux.Handle(protocol.EventEndSession, withInput(c, c.handleEndSession))

	// playback sync
	mux.Handle(protocol.EventSyncPlay, withInput(c, c.handleSyncPlay))
	mux.Handle(protocol.EventSyncPause, withInput(c, c.handleSyncPause))
	mux.Handle(protocol.EventSyncSeek, withInput(c, c.handleSyncSeek))
	mux.Handle(protocol.EventSyncSkipForward, withInput(c, c.handleSyncSkipForward))
	mux.Handle(protocol.EventSyncSkipBackward, withInput(c, c.handleSyncSkipBackward))

	// chat
	mux.Handle(protocol.EventSendChat, withInput(c, c.handleSendChat))

	return mux
}

// withInput decodes the payload into the handler's input type, acknowledges
// receipt, and reports handler failures as Error events so a bad message
// never tears down the read loop.
func withInput[T any](c *controller, handler func(ctx context.Context, conn *websocket.Conn, input T) error) wsrouter.HandlerFunc {
	return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		messageId := wsrouter.GetMessageIdFromCtx(ctx)

		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				c.logger.DebugContext(ctx, "malformed payload",
					"type", wsrouter.GetMessageTypeFromCtx(ctx),
					"error", err,
				)
				c.sendAck(ctx, conn, messageId, errMalformedPayload)
				return errMalformedPayload
			}
		}

		if err := handler(ctx, conn, input); err != nil {
			c.logger.InfoContext(ctx, "handler failed",
				"type", wsrouter.GetMessageTypeFromCtx(ctx),
				"error", err,
			)
			c.sendAck(ctx, conn, messageId, err)
			c.sendError(ctx, conn, err)
			return err
		}

		c.sendAck(ctx, conn, messageId, nil)
		return nil
	}
}

func (c *controller) validateInput(input any) error {
	if fieldErrors := c.validate.Validate(input); len(fieldErrors) > 0 {
		return fmt.Errorf("%w: %s", errValidation, fieldErrors[0].Message)
	}

	return nil
}

package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeldris273/watchparty/internal/service/room"
	"github.com/zeldris273/watchparty/pkg/protocol"
)

func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	user := c.getUser(r)

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	ctx := context.WithValue(r.Context(), userCtxKey, user)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "conn closed", "error", err)
	}

	disconnectResp, err := c.roomService.DisconnectByConn(ctx, conn)
	if err != nil {
		// connections that never joined, or were replaced by a
		// reconnect, have nothing to clean up
		if !errors.Is(err, room.ErrNotInRoom) {
			c.logger.WarnContext(ctx, "failed to disconnect", "error", err)
		}
		return
	}

	if disconnectResp.IsRoomEnded {
		c.broadcast(ctx, disconnectResp.Conns, c.newMessage(protocol.EventReceiveEndSession, nil))
		c.closeConns(ctx, disconnectResp.Conns, protocol.CloseSessionEnded)
		return
	}

	c.broadcast(ctx, disconnectResp.Conns, c.newMessage(protocol.EventViewerCountUpdated, protocol.ViewerCountUpdated{
		Count: disconnectResp.ViewerCount,
	}))
	c.broadcast(ctx, disconnectResp.Conns, c.newMessage(protocol.EventReceiveSystemMessage, protocol.ReceiveSystemMessage{
		Message: user.displayName + " left the room",
	}))
}

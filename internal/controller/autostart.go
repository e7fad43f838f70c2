package controller

import (
	"context"
	"time"

	"github.com/zeldris273/watchparty/pkg/protocol"
)

// RunAutoStartLoop polls for scheduled rooms whose start time has passed
// and broadcasts the start to their members. Blocks until ctx is done.
func (c *controller) RunAutoStartLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started, err := c.roomService.AutoStartDue(ctx)
			if err != nil {
				c.logger.WarnContext(ctx, "auto-start sweep failed", "error", err)
			}

			for _, room := range started {
				c.broadcast(ctx, room.Conns, c.newMessage(protocol.EventReceiveSystemMessage, protocol.ReceiveSystemMessage{
					Message: "scheduled session is starting",
				}))
				c.broadcast(ctx, room.Conns, c.newMessage(protocol.EventReceiveStartSession, nil))
			}
		}
	}
}

package controller

import (
	"context"
	"net/http"
)

type contextKey int

const userCtxKey contextKey = iota

type user struct {
	displayName string
	avatarURL   string
}

// getUser reads the display profile passed as query parameters on the
// websocket handshake. Browsers cannot set custom headers on ws dials.
func (c *controller) getUser(r *http.Request) user {
	displayName := r.URL.Query().Get("display-name")
	if displayName == "" {
		displayName = "guest-" + c.guestName.GenerateRandomString(8)
	}

	return user{
		displayName: displayName,
		avatarURL:   r.URL.Query().Get("avatar-url"),
	}
}

func (c *controller) getUserFromCtx(ctx context.Context) user {
	u, ok := ctx.Value(userCtxKey).(user)
	if !ok {
		return user{}
	}

	return u
}

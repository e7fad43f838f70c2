package controller

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/zeldris273/watchparty/pkg/ctxlogger"
)

// requestMw tags every request with a connection id that follows the
// websocket session through the logs, then logs the request itself.
func (c *controller) requestMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("connection_id", uuid.NewString()))

		c.logger.InfoContext(ctx, "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

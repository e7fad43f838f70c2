package controller

import (
	"net/http"

	"github.com/zeldris273/watchparty/pkg/rest"
)

func (c *controller) getPublicRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := c.roomService.PublicRooms(r.Context())
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get public rooms", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rooms})
}

func (c *controller) getMyRooms(w http.ResponseWriter, r *http.Request) {
	hostUserId := r.URL.Query().Get("host-id")
	if hostUserId == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "host-id is required"})
		return
	}

	rooms, err := c.roomService.RoomsByHost(r.Context(), hostUserId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get host rooms", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rooms})
}

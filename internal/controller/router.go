package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestMw)

	r.Get("/api/rooms/public", c.getPublicRooms)
	r.Get("/api/rooms/my", c.getMyRooms)
	r.HandleFunc("/ws", c.serveWS)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	}).Handler(r)
}

// Package wsrouter dispatches typed websocket messages to handlers
// registered per message type.
package wsrouter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

type Message struct {
	Id      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

type WSRouter struct {
	routes map[string]HandlerFunc
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

// Handle registers a handler for the given message type. The last
// registration for a type wins.
func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads messages from conn until it fails and routes each one to
// its handler. Handler errors do not stop the loop; they are the handler's
// responsibility to report to the peer.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		// writes belong to the handlers' write queue; an unknown type
		// is dropped and the sender's ack wait times out
		handler, exists := r.routes[msg.Type]
		if !exists {
			continue
		}

		hctx := context.WithValue(ctx, messageTypeKey, msg.Type)
		hctx = context.WithValue(hctx, messageIdKey, msg.Id)
		handler(hctx, conn, msg.Payload)
	}
}

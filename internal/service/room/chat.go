package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

type SendChatParams struct {
	RoomId     string
	SenderName string
	Text       string
	AvatarURL  string
	Conn       *websocket.Conn
}

type SendChatResponse struct {
	Conns []*websocket.Conn
}

// SendChat fans a chat message out to every room member, sender included.
// Any member may chat; this is not a host-only action.
func (s service) SendChat(ctx context.Context, params *SendChatParams) (SendChatResponse, error) {
	if _, err := s.resolveSender(params.Conn, params.RoomId); err != nil {
		return SendChatResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return SendChatResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return SendChatResponse{Conns: conns}, nil
}

// Package inmemory maps live websocket connections to client ids. A client
// id is scoped to one room, so rejoining after a transport drop replaces the
// stale connection instead of leaking it.
package inmemory

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/zeldris273/watchparty/internal/repository/connection"
)

type repo struct {
	mu       sync.RWMutex
	byConn   map[*websocket.Conn]string
	byClient map[string]*websocket.Conn
}

func NewRepo() *repo {
	return &repo{
		byConn:   make(map[*websocket.Conn]string),
		byClient: make(map[string]*websocket.Conn),
	}
}

// Add registers conn under clientId. If the client already has a
// connection, the old one is evicted and returned so the caller can close
// it.
func (r *repo) Add(conn *websocket.Conn, clientId string) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := r.byClient[clientId]
	if evicted != nil {
		delete(r.byConn, evicted)
	}

	r.byConn[conn] = clientId
	r.byClient[clientId] = conn

	return evicted, nil
}

func (r *repo) RemoveByConn(conn *websocket.Conn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clientId, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	delete(r.byConn, conn)
	// a reconnect may have already replaced this client's connection
	if r.byClient[clientId] == conn {
		delete(r.byClient, clientId)
	}

	return clientId, nil
}

func (r *repo) RemoveByClientId(clientId string) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byClient[clientId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	delete(r.byClient, clientId)
	delete(r.byConn, conn)

	return conn, nil
}

func (r *repo) GetConn(clientId string) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byClient[clientId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetClientId(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clientId, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return clientId, nil
}

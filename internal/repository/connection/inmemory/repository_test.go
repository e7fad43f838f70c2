package inmemory

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeldris273/watchparty/internal/repository/connection"
)

func TestAddAndLookup(t *testing.T) {
	r := NewRepo()
	conn := &websocket.Conn{}

	evicted, err := r.Add(conn, "room-1:user-1")
	require.NoError(t, err)
	assert.Nil(t, evicted)

	got, err := r.GetConn("room-1:user-1")
	require.NoError(t, err)
	assert.Same(t, conn, got)

	id, err := r.GetClientId(conn)
	require.NoError(t, err)
	assert.Equal(t, "room-1:user-1", id)

	_, err = r.GetConn("room-1:user-2")
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestAddEvictsStaleConn(t *testing.T) {
	r := NewRepo()
	stale := &websocket.Conn{}
	fresh := &websocket.Conn{}

	_, err := r.Add(stale, "room-1:user-1")
	require.NoError(t, err)

	evicted, err := r.Add(fresh, "room-1:user-1")
	require.NoError(t, err)
	assert.Same(t, stale, evicted)

	got, err := r.GetConn("room-1:user-1")
	require.NoError(t, err)
	assert.Same(t, fresh, got)

	_, err = r.GetClientId(stale)
	assert.ErrorIs(t, err, connection.ErrNotFound, "the evicted connection must be fully forgotten")
}

func TestRemoveByConnAfterReplacement(t *testing.T) {
	r := NewRepo()
	stale := &websocket.Conn{}
	fresh := &websocket.Conn{}

	_, err := r.Add(stale, "room-1:user-1")
	require.NoError(t, err)
	_, err = r.Add(fresh, "room-1:user-1")
	require.NoError(t, err)

	// the stale conn's close arrives after the rejoin replaced it
	_, err = r.RemoveByConn(stale)
	assert.ErrorIs(t, err, connection.ErrNotFound)

	got, err := r.GetConn("room-1:user-1")
	require.NoError(t, err)
	assert.Same(t, fresh, got, "the replacement must survive the stale close")
}

func TestRemoveByConn(t *testing.T) {
	r := NewRepo()
	conn := &websocket.Conn{}

	_, err := r.Add(conn, "room-1:user-1")
	require.NoError(t, err)

	id, err := r.RemoveByConn(conn)
	require.NoError(t, err)
	assert.Equal(t, "room-1:user-1", id)

	_, err = r.GetConn("room-1:user-1")
	assert.ErrorIs(t, err, connection.ErrNotFound)

	_, err = r.RemoveByConn(conn)
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestRemoveByClientId(t *testing.T) {
	r := NewRepo()
	conn := &websocket.Conn{}

	_, err := r.Add(conn, "room-1:user-1")
	require.NoError(t, err)

	got, err := r.RemoveByClientId("room-1:user-1")
	require.NoError(t, err)
	assert.Same(t, conn, got)

	_, err = r.GetClientId(conn)
	assert.ErrorIs(t, err, connection.ErrNotFound)

	_, err = r.RemoveByClientId("room-1:user-1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

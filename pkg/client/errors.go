package client

import "errors"

var (
	// ErrNotConnected is returned by Invoke while the channel is down.
	ErrNotConnected = errors.New("not connected")
	// ErrTransportClosed is returned after Disconnect.
	ErrTransportClosed = errors.New("transport closed")
	// ErrInvokeTimeout is returned when the hub does not acknowledge an
	// invocation within the bounded wait.
	ErrInvokeTimeout = errors.New("invoke timed out")
	// ErrInvokeRejected is returned when the hub acknowledges an
	// invocation with a failure.
	ErrInvokeRejected = errors.New("invoke rejected")
	// ErrJoinTimeout is returned when JoinedRoom does not arrive within
	// the join wait.
	ErrJoinTimeout = errors.New("join timed out")
	// ErrRoomCreateFailed is returned when the hub reports a failed
	// room creation.
	ErrRoomCreateFailed = errors.New("room creation failed")
)

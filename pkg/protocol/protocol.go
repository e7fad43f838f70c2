// Package protocol defines the wire contract between watch-party clients and
// the hub. Every message travels inside an Envelope; the Type field selects
// one of the payload structs below.
package protocol

import "encoding/json"

// Client-to-hub event names.
const (
	EventCreateRoom       = "CreateRoom"
	EventJoinRoom         = "JoinRoom"
	EventSyncPlay         = "SyncPlay"
	EventSyncPause        = "SyncPause"
	EventSyncSeek         = "SyncSeek"
	EventSyncSkipForward  = "SyncSkipForward"
	EventSyncSkipBackward = "SyncSkipBackward"
	EventStartSession     = "StartSession"
	EventEndSession       = "EndSession"
	EventSendChat         = "SendChat"
)

// Hub-to-client event names.
const (
	EventJoinedRoom           = "JoinedRoom"
	EventRoomCreated          = "RoomCreated"
	EventViewerCountUpdated   = "ViewerCountUpdated"
	EventReceiveUserProfile   = "ReceiveUserProfile"
	EventReceiveChat          = "ReceiveChat"
	EventReceiveSystemMessage = "ReceiveSystemMessage"
	EventReceiveStartSession  = "ReceiveStartSession"
	EventReceiveEndSession    = "ReceiveEndSession"
	EventReceivePlay          = "ReceivePlay"
	EventReceivePause         = "ReceivePause"
	EventReceiveSeek          = "ReceiveSeek"
	EventReceiveSkipForward   = "ReceiveSkipForward"
	EventReceiveSkipBackward  = "ReceiveSkipBackward"
	EventError                = "Error"
	EventAck                  = "Ack"
)

const (
	// SkipSeconds is the fixed increment applied by every client on
	// ReceiveSkipForward/ReceiveSkipBackward.
	SkipSeconds = 5.0

	// AutoQualityLevel selects automatic bitrate selection in the player.
	AutoQualityLevel = -1
)

// Hub close codes. Both tell the client the connection was shut down on
// purpose and must not be redialed.
const (
	// CloseSessionEnded: the room is gone.
	CloseSessionEnded = 4001
	// CloseConnReplaced: a newer connection joined with the same user id
	// and took over.
	CloseConnReplaced = 4002
)

// Envelope is the frame every event is wrapped in. Id is set on client
// invocations and echoed back in the matching Ack; it is empty on
// hub-originated broadcasts.
type Envelope struct {
	Id      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type CreateRoom struct {
	RoomId             string          `json:"room_id"`
	HostUserId         string          `json:"host_user_id"`
	MovieData          json.RawMessage `json:"movie_data"`
	AutoStart          bool            `json:"auto_start"`
	ScheduledStartTime int64           `json:"scheduled_start_time,omitempty"`
	IsPrivate          bool            `json:"is_private"`
}

type JoinRoom struct {
	RoomId string `json:"room_id"`
	UserId string `json:"user_id"`
}

// SyncPlay and SyncPause carry the host's duration alongside the position
// so the hub can clamp against the real media length; 0 means unknown.
type SyncPlay struct {
	RoomId      string  `json:"room_id"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration,omitempty"`
}

type SyncPause struct {
	RoomId      string  `json:"room_id"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration,omitempty"`
}

type SyncSeek struct {
	RoomId  string  `json:"room_id"`
	NewTime float64 `json:"new_time"`
}

type SyncSkip struct {
	RoomId string `json:"room_id"`
}

type StartSession struct {
	RoomId string `json:"room_id"`
}

type EndSession struct {
	RoomId string `json:"room_id"`
}

type SendChat struct {
	RoomId     string `json:"room_id"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
	AvatarURL  string `json:"avatar_url"`
}

// JoinedRoom is the full room snapshot sent to a client after JoinRoom.
// Started, IsPlaying and CurrentTime let a late joiner pick up a session
// already in progress instead of resetting to zero.
type JoinedRoom struct {
	RoomId             string          `json:"room_id"`
	IsHost             bool            `json:"is_host"`
	HostUserId         string          `json:"host_user_id"`
	HostDisplayName    string          `json:"host_display_name"`
	HostAvatarURL      string          `json:"host_avatar_url"`
	CreatedAt          int64           `json:"created_at"`
	ViewerCount        int             `json:"viewer_count"`
	MovieData          json.RawMessage `json:"movie_data"`
	AutoStart          bool            `json:"auto_start"`
	ScheduledStartTime int64           `json:"scheduled_start_time,omitempty"`
	Started            bool            `json:"started"`
	IsPlaying          bool            `json:"is_playing"`
	CurrentTime        float64         `json:"current_time"`
}

type RoomCreated struct {
	RoomId       string `json:"room_id"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type ViewerCountUpdated struct {
	Count int `json:"count"`
}

type ReceiveUserProfile struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type ReceiveChat struct {
	User   string `json:"user"`
	Text   string `json:"text"`
	Avatar string `json:"avatar"`
}

type ReceiveSystemMessage struct {
	Message string `json:"message"`
}

type ReceivePlay struct {
	Time float64 `json:"time"`
}

type ReceivePause struct {
	Time float64 `json:"time"`
}

type ReceiveSeek struct {
	Time float64 `json:"time"`
}

type Error struct {
	Message string `json:"message"`
}

type Ack struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ClampTime clamps t to [0, duration]. A duration of 0 means unknown and
// only the lower bound is applied.
func ClampTime(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}

package room

import "encoding/json"

// Snapshot is the full room state handed to a client on join.
type Snapshot struct {
	RoomId             string
	IsHost             bool
	HostUserId         string
	HostDisplayName    string
	HostAvatarURL      string
	CreatedAt          int64
	ViewerCount        int
	MovieData          json.RawMessage
	AutoStart          bool
	ScheduledStartTime int64
	Started            bool
	IsPlaying          bool
	CurrentTime        float64
}

// RoomSummary is a listing entry for the room discovery endpoints.
type RoomSummary struct {
	RoomId             string          `json:"room_id"`
	MovieData          json.RawMessage `json:"movie_data"`
	ViewerCount        int             `json:"viewer_count"`
	Started            bool            `json:"started"`
	AutoStart          bool            `json:"auto_start"`
	ScheduledStartTime int64           `json:"scheduled_start_time,omitempty"`
	CreatedAt          int64           `json:"created_at"`
}

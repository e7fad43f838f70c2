package room

// Room is the authoritative session record. MovieData is an opaque JSON
// blob supplied by the host; the hub never inspects it.
type Room struct {
	HostUserId         string `redis:"host_user_id"`
	HostDisplayName    string `redis:"host_display_name"`
	HostAvatarURL      string `redis:"host_avatar_url"`
	MovieData          string `redis:"movie_data"`
	Started            bool   `redis:"started"`
	IsPrivate          bool   `redis:"is_private"`
	AutoStart          bool   `redis:"auto_start"`
	ScheduledStartTime int64  `redis:"scheduled_start_time"`
	CreatedAt          int64  `redis:"created_at"`
}

// Playback holds the host's last broadcast position. UpdatedAt lets readers
// extrapolate the current position while IsPlaying is true. Duration is 0
// until the host reports one.
type Playback struct {
	IsPlaying   bool    `redis:"is_playing"`
	CurrentTime float64 `redis:"current_time"`
	Duration    float64 `redis:"duration"`
	UpdatedAt   int64   `redis:"updated_at"`
}

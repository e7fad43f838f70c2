package room

type SetRoomParams struct {
	RoomId             string
	HostUserId         string
	HostDisplayName    string
	HostAvatarURL      string
	MovieData          string
	IsPrivate          bool
	AutoStart          bool
	ScheduledStartTime int64
	CreatedAt          int64
}

type SetPlaybackParams struct {
	RoomId      string
	IsPlaying   bool
	CurrentTime float64
	Duration    float64
	UpdatedAt   int64
}

type UpdatePlaybackStateParams struct {
	RoomId      string
	IsPlaying   bool
	CurrentTime float64
	Duration    float64
	UpdatedAt   int64
}

type AddMemberParams struct {
	RoomId string
	UserId string
}

type RemoveMemberParams struct {
	RoomId string
	UserId string
}

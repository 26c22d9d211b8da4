package room

type CreateRoomParams struct {
	RoomId    string
	Name      string
	OwnerId   string
	CreatedAt int64
}

type SetMemberParams struct {
	MemberId string
	RoomId   string
	Username string
	JoinedAt int64
}

type RemoveMemberParams struct {
	MemberId string
	RoomId   string
}

type GetMemberParams struct {
	MemberId string
	RoomId   string
}

type SetPlayerParams struct {
	RoomId    string
	MediaRef  string
	IsPlaying bool
	Position  float64
	Speed     float64
	UpdatedAt int64
}

type UpdatePlayerSeekParams struct {
	RoomId    string
	MediaRef  string
	Position  float64
	UpdatedAt int64
}

type UpdatePlayerSpeedParams struct {
	RoomId    string
	Speed     float64
	UpdatedAt int64
}

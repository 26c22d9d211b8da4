package room

type Room struct {
	Name      string `redis:"name" json:"name"`
	OwnerId   string `redis:"owner_id" json:"owner_id"`
	CreatedAt int64  `redis:"created_at" json:"created_at"`
}

type Member struct {
	Username string `redis:"username" json:"username"`
	JoinedAt int64  `redis:"joined_at" json:"joined_at"`
}

// Player is the last-reported playback state of a room. It is overwritten by
// every report; there is no ordering beyond last write wins.
type Player struct {
	MediaRef  string  `redis:"media_ref" json:"media_ref"`
	IsPlaying bool    `redis:"is_playing" json:"is_playing"`
	Position  float64 `redis:"position" json:"position"`
	Speed     float64 `redis:"speed" json:"speed"`
	UpdatedAt int64   `redis:"updated_at" json:"updated_at"`
}

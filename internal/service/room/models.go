package room

import "github.com/couchsync/server/internal/repository/session"

type Member struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

type ChatMessage struct {
	Id        string `json:"id"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type PlaybackState struct {
	MediaRef  string  `json:"mediaRef"`
	IsPlaying bool    `json:"isPlaying"`
	Position  float64 `json:"position"`
	Speed     float64 `json:"speed"`
	UpdatedAt int64   `json:"updatedAt"`
}

type RoomSnapshot struct {
	RoomId  string         `json:"roomId"`
	Name    string         `json:"name"`
	Members []Member       `json:"members"`
	Player  *PlaybackState `json:"player"`
}

// Receiver pairs a locally connected member with its connection, for
// delivering fan-out envelopes.
type Receiver struct {
	MemberId string
	Conn     *session.Conn
}

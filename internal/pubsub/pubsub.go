package pubsub

import "encoding/json"

// Envelope is the unit of room fan-out. Every broadcast travels through the
// pub/sub substrate, including to members connected to the publishing
// process, so there is exactly one delivery path.
type Envelope struct {
	RoomId  string          `json:"room_id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	// ExcludeMemberId suppresses delivery to one member, used for
	// sender-excluded rebroadcasts.
	ExcludeMemberId string `json:"exclude_member_id,omitempty"`
	// ToMemberId restricts delivery to one member regardless of which
	// process it is connected to.
	ToMemberId string `json:"to_member_id,omitempty"`
}

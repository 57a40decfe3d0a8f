package domain

import "time"

// Participant represents one connection's membership meta for a room.
// No transport or lifecycle logic here.
type Participant struct {
	ID           ParticipantID
	Username     string
	JoinedAt     time.Time
	AudioEnabled bool
	VideoEnabled bool
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
// Audio and video start enabled.
func NewParticipant(id ParticipantID, username string, joinedAt time.Time) Participant {
	return Participant{
		ID:           id,
		Username:     username,
		JoinedAt:     joinedAt,
		AudioEnabled: true,
		VideoEnabled: true,
	}
}

package core

import "github.com/dkeye/pqvoice/internal/domain"

// Rooms is the core-facing API of the room registry.
// It owns membership but never touches transport resources.
type Rooms interface {
	CreateRoom(name string, maxParticipants uint32) *Room
	GetRoom(id domain.RoomID) (*Room, bool)
	List() []RoomInfo
	RoomOf(pid domain.ParticipantID) (*Room, bool)

	Join(roomID domain.RoomID, p domain.Participant) (JoinResult, error)
	Leave(pid domain.ParticipantID) (*Room, error)
	SetAudio(pid domain.ParticipantID, enabled bool) (*Room, bool)
	SetVideo(pid domain.ParticipantID, enabled bool) (*Room, bool)

	SetLocked(id domain.RoomID, locked bool) error
	DeleteRoom(id domain.RoomID) ([]domain.ParticipantID, bool)
}

var _ Rooms = (*RoomManager)(nil)

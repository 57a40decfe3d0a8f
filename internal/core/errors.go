package core

import "errors"

// Error strings are shown to clients verbatim.
var (
	ErrRoomNotFound        = errors.New("Room not found")
	ErrRoomFull            = errors.New("Room is full")
	ErrRoomLocked          = errors.New("Room is locked")
	ErrParticipantNotFound = errors.New("Participant not found")
)

package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"
)

type RoomID string

func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

func ValidateRoomName(name string) error {
	if name == "" {
		return ErrRoomNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	return nil
}

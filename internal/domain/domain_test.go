package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.ErrorIs(t, ValidateUsername(""), ErrUsernameEmpty)
	assert.ErrorIs(t, ValidateUsername(strings.Repeat("a", MaxUsernameLen+1)), ErrUsernameTooLong)
	// runes, not bytes
	assert.NoError(t, ValidateUsername(strings.Repeat("é", MaxUsernameLen)))
}

func TestValidateRoomName(t *testing.T) {
	assert.NoError(t, ValidateRoomName("Lobby"))
	assert.ErrorIs(t, ValidateRoomName(""), ErrRoomNameEmpty)
	assert.ErrorIs(t, ValidateRoomName(strings.Repeat("r", MaxRoomNameLen+1)), ErrRoomNameTooLong)
}

func TestNewParticipantDefaults(t *testing.T) {
	now := time.Now()
	p := NewParticipant("p1", "alice", now)
	assert.Equal(t, ParticipantID("p1"), p.ID)
	assert.True(t, p.AudioEnabled)
	assert.True(t, p.VideoEnabled)
	assert.Equal(t, now, p.JoinedAt)
}

func TestIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewParticipantID(), NewParticipantID())
	assert.NotEqual(t, NewRoomID(), NewRoomID())
}

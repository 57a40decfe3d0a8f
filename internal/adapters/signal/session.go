package signal

import (
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/pqc"
)

type State int

const (
	Unauthenticated State = iota
	KeyExchanged
	LoggedIn
	InRoom
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case KeyExchanged:
		return "key_exchanged"
	case LoggedIn:
		return "logged_in"
	case InRoom:
		return "in_room"
	default:
		return "unknown"
	}
}

// session is owned by the connection's reader goroutine and never shared.
type session struct {
	id       domain.ParticipantID
	state    State
	username string
	secret   *pqc.Session
	roomID   domain.RoomID
}

func newSession(id domain.ParticipantID) *session {
	return &session{id: id, state: Unauthenticated}
}

func (s *session) loggedIn() bool { return s.state >= LoggedIn }

func (s *session) keyExchanged() bool { return s.secret != nil }

func (s *session) setSecret(secret []byte) (replaced bool) {
	if s.secret != nil {
		s.secret.Wipe()
		replaced = true
	}
	s.secret = pqc.NewSession(secret)
	if s.state == Unauthenticated {
		s.state = KeyExchanged
	}
	return replaced
}

func (s *session) login(username string) {
	s.username = username
	if s.state < LoggedIn {
		s.state = LoggedIn
	}
}

func (s *session) enterRoom(id domain.RoomID) {
	s.roomID = id
	s.state = InRoom
}

func (s *session) leaveRoom() {
	s.roomID = ""
	if s.state == InRoom {
		s.state = LoggedIn
	}
}

func (s *session) wipe() {
	if s.secret != nil {
		s.secret.Wipe()
		s.secret = nil
	}
}

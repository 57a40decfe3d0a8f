package orch

import (
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/rs/zerolog/log"
)

const unknownSender = "Unknown"

// SendChat delivers a chat line to every member of the sender's room,
// the sender included.
func (o *Orchestrator) SendChat(pid domain.ParticipantID, content string) error {
	room, ok := o.Rooms.RoomOf(pid)
	if !ok {
		return ErrNotInRoom
	}
	username, ok := o.Registry.Username(pid)
	if !ok {
		username = unknownSender
		if p, ok := room.Participant(pid); ok {
			username = p.Username
		}
	}
	msg := &proto.MessageReceived{
		SenderID:       string(pid),
		SenderUsername: username,
		Content:        content,
		Timestamp:      uint64(o.now().Unix()),
	}
	n := o.broadcast(room, "", msg)
	log.Info().Str("module", "orch").Str("sid", string(pid)).Str("room_id", string(room.ID())).Int("recipients", n).Msg("chat message")
	return nil
}

// RelayAudio forwards an audio payload to every other member. The sender
// never receives its own audio.
func (o *Orchestrator) RelayAudio(pid domain.ParticipantID, data []byte) error {
	room, ok := o.Rooms.RoomOf(pid)
	if !ok {
		return ErrNotInRoom
	}
	o.broadcast(room, pid, &proto.AudioDataReceived{SenderID: string(pid), Data: data})
	return nil
}

// RoomMates returns the other members of pid's room.
func (o *Orchestrator) RoomMates(pid domain.ParticipantID) ([]domain.ParticipantID, bool) {
	room, ok := o.Rooms.RoomOf(pid)
	if !ok {
		return nil, false
	}
	ids := room.ParticipantIDs()
	out := ids[:0]
	for _, id := range ids {
		if id != pid {
			out = append(out, id)
		}
	}
	return out, true
}

// AudioEnabled reports whether pid is in a room with its microphone on.
func (o *Orchestrator) AudioEnabled(pid domain.ParticipantID) bool {
	room, ok := o.Rooms.RoomOf(pid)
	if !ok {
		return false
	}
	p, ok := room.Participant(pid)
	return ok && p.AudioEnabled
}

// SetAudioKey records the key pid seals relay datagrams with. It is derived
// from the signaling key exchange.
func (o *Orchestrator) SetAudioKey(pid domain.ParticipantID, key []byte) bool {
	return o.Registry.SetAudioKey(pid, key)
}

func (o *Orchestrator) AudioKey(pid domain.ParticipantID) ([]byte, bool) {
	return o.Registry.AudioKey(pid)
}

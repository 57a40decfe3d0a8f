package signal

import (
	"errors"

	"github.com/dkeye/pqvoice/internal/app/orch"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/rs/zerolog/log"
)

const (
	msgNotLoggedIn = "Not logged in"
	msgRateLimited = "Rate limit exceeded"
	msgNotInRoom   = "Not in a room"
)

func (ctl *Controller) handleListRooms(sess *session) {
	ctl.reply(sess, &proto.RoomList{Rooms: ctl.Orch.ListRooms()})
}

func (ctl *Controller) handleCreateRoom(sess *session, m *proto.CreateRoom) {
	if !sess.loggedIn() {
		ctl.reply(sess, &proto.RoomCreated{Success: false, Error: proto.Str(msgNotLoggedIn)})
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sess.id) {
		ctl.reply(sess, &proto.RoomCreated{Success: false, Error: proto.Str(msgRateLimited)})
		return
	}
	room, err := ctl.Orch.CreateRoom(m.Name, m.MaxParticipants)
	if err != nil {
		ctl.reply(sess, &proto.RoomCreated{Success: false, Error: proto.Str(err.Error())})
		return
	}
	ctl.reply(sess, &proto.RoomCreated{
		Success:  true,
		RoomID:   proto.Str(string(room.ID())),
		RoomName: proto.Str(room.Name()),
	})
}

func (ctl *Controller) handleJoin(sess *session, m *proto.JoinRoom) {
	if !sess.loggedIn() {
		ctl.reply(sess, &proto.RoomJoined{Success: false, Error: proto.Str(msgNotLoggedIn)})
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.id)).Str("room_id", m.RoomID).Msg("join")
	res, err := ctl.Orch.Join(sess.id, domain.RoomID(m.RoomID), m.Username)
	if err != nil {
		if res.Previous != nil {
			sess.leaveRoom()
		}
		ctl.reply(sess, &proto.RoomJoined{Success: false, Error: proto.Str(err.Error())})
		return
	}
	room := res.Room
	sess.enterRoom(room.ID())
	participants := orch.ParticipantInfos(room)
	ctl.reply(sess, &proto.RoomJoined{
		Success:      true,
		RoomID:       proto.Str(string(room.ID())),
		RoomName:     proto.Str(room.Name()),
		Participants: &participants,
	})
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *Controller) handleLeave(sess *session) {
	log.Info().Str("module", "signal").Str("sid", string(sess.id)).Msg("leave")
	_, err := ctl.Orch.Leave(sess.id)
	sess.leaveRoom()
	if err != nil {
		ctl.reply(sess, &proto.RoomLeft{Success: false, Error: proto.Str(err.Error())})
		return
	}
	ctl.reply(sess, &proto.RoomLeft{Success: true})
}

func (ctl *Controller) handleToggleAudio(sess *session, m *proto.ToggleAudio) {
	if sess.state != InRoom || !ctl.Orch.ToggleAudio(sess.id, m.Enabled) {
		ctl.notInRoom(sess)
		return
	}
	ctl.reply(sess, &proto.AudioToggled{ParticipantID: string(sess.id), Enabled: m.Enabled})
}

func (ctl *Controller) handleToggleVideo(sess *session, m *proto.ToggleVideo) {
	if sess.state != InRoom || !ctl.Orch.ToggleVideo(sess.id, m.Enabled) {
		ctl.notInRoom(sess)
		return
	}
	ctl.reply(sess, &proto.VideoToggled{ParticipantID: string(sess.id), Enabled: m.Enabled})
}

// handleSendMessage has no direct reply: the sender gets the broadcast.
func (ctl *Controller) handleSendMessage(sess *session, m *proto.SendMessage) {
	if sess.state != InRoom {
		ctl.notInRoom(sess)
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sess.id) {
		ctl.reply(sess, proto.NewError(msgRateLimited))
		return
	}
	if err := ctl.Orch.SendChat(sess.id, m.Content); err != nil {
		ctl.failInRoom(sess, err)
	}
}

func (ctl *Controller) handleAudioData(sess *session, m *proto.AudioData) {
	if sess.state != InRoom {
		ctl.notInRoom(sess)
		return
	}
	if err := ctl.Orch.RelayAudio(sess.id, m.Data); err != nil {
		ctl.failInRoom(sess, err)
	}
}

func (ctl *Controller) failInRoom(sess *session, err error) {
	if errors.Is(err, orch.ErrNotInRoom) {
		ctl.notInRoom(sess)
		return
	}
	ctl.reply(sess, proto.NewError(err.Error()))
}

// notInRoom also resyncs the state when the room went away underneath us.
func (ctl *Controller) notInRoom(sess *session) {
	sess.leaveRoom()
	ctl.reply(sess, proto.NewError(msgNotInRoom))
}

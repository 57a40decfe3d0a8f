package orch

import (
	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/rs/zerolog/log"
)

const fallbackMaxParticipants = 10

func (o *Orchestrator) CreateRoom(name string, maxParticipants *uint32) (*core.Room, error) {
	if err := domain.ValidateRoomName(name); err != nil {
		return nil, err
	}
	limit := o.DefaultMaxParticipants
	if limit == 0 {
		limit = fallbackMaxParticipants
	}
	if maxParticipants != nil {
		limit = *maxParticipants
	}
	return o.Rooms.CreateRoom(name, limit), nil
}

// Join moves pid into the room under the given display name. A previous
// room is released before the target is checked, so its members hear
// ParticipantLeft whether or not the join succeeds.
func (o *Orchestrator) Join(pid domain.ParticipantID, roomID domain.RoomID, username string) (core.JoinResult, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return core.JoinResult{}, err
	}
	res, err := o.Rooms.Join(roomID, domain.NewParticipant(pid, username, o.now()))
	if res.Previous != nil {
		o.broadcast(res.Previous, pid, &proto.ParticipantLeft{ParticipantID: string(pid)})
	}
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("sid", string(pid)).Str("room_id", string(roomID)).Msg("join refused")
		return res, err
	}
	o.broadcast(res.Room, pid, &proto.ParticipantJoined{ParticipantID: string(pid), Username: username})
	return res, nil
}

func (o *Orchestrator) Leave(pid domain.ParticipantID) (*core.Room, error) {
	room, err := o.Rooms.Leave(pid)
	if err != nil {
		return nil, err
	}
	o.broadcast(room, pid, &proto.ParticipantLeft{ParticipantID: string(pid)})
	return room, nil
}

// ToggleAudio reports false when pid is in no room.
func (o *Orchestrator) ToggleAudio(pid domain.ParticipantID, enabled bool) bool {
	room, ok := o.Rooms.SetAudio(pid, enabled)
	if !ok {
		return false
	}
	o.broadcast(room, pid, &proto.AudioToggled{ParticipantID: string(pid), Enabled: enabled})
	return true
}

// ToggleVideo reports false when pid is in no room.
func (o *Orchestrator) ToggleVideo(pid domain.ParticipantID, enabled bool) bool {
	room, ok := o.Rooms.SetVideo(pid, enabled)
	if !ok {
		return false
	}
	o.broadcast(room, pid, &proto.VideoToggled{ParticipantID: string(pid), Enabled: enabled})
	return true
}

func (o *Orchestrator) LockRoom(id domain.RoomID, locked bool) error {
	return o.Rooms.SetLocked(id, locked)
}

// DeleteRoom evicts every member; each one gets a RoomLeft.
func (o *Orchestrator) DeleteRoom(id domain.RoomID) bool {
	evicted, ok := o.Rooms.DeleteRoom(id)
	if !ok {
		return false
	}
	for _, pid := range evicted {
		o.Send(pid, &proto.RoomLeft{Success: true})
	}
	return true
}

func (o *Orchestrator) ListRooms() []proto.RoomInfo {
	infos := o.Rooms.List()
	out := make([]proto.RoomInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, RoomInfoOf(info))
	}
	return out
}

// ListUsers lists connections that have logged in.
func (o *Orchestrator) ListUsers() []proto.ServerUserInfo {
	users := o.Registry.Users()
	out := make([]proto.ServerUserInfo, 0, len(users))
	for _, u := range users {
		if u.Username == "" {
			continue
		}
		info := proto.ServerUserInfo{
			ID:           string(u.ID),
			Username:     u.Username,
			ConnectedAt:  uint64(u.ConnectedAt.Unix()),
			AudioEnabled: true,
		}
		if room, ok := o.Rooms.RoomOf(u.ID); ok {
			info.CurrentRoom = proto.Str(room.Name())
			if p, ok := room.Participant(u.ID); ok {
				info.AudioEnabled = p.AudioEnabled
				info.VideoEnabled = p.VideoEnabled
			}
		}
		out = append(out, info)
	}
	return out
}

func RoomInfoOf(info core.RoomInfo) proto.RoomInfo {
	return proto.RoomInfo{
		ID:              string(info.ID),
		Name:            info.Name,
		Participants:    uint32(info.Participants),
		MaxParticipants: info.MaxParticipants,
		IsLocked:        info.IsLocked,
	}
}

func ParticipantInfos(room *core.Room) []proto.ParticipantInfo {
	ps := room.Participants()
	out := make([]proto.ParticipantInfo, 0, len(ps))
	for _, p := range ps {
		out = append(out, proto.ParticipantInfo{
			ID:           string(p.ID),
			Username:     p.Username,
			AudioEnabled: p.AudioEnabled,
			VideoEnabled: p.VideoEnabled,
		})
	}
	return out
}

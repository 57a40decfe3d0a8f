package core

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManager is the global room registry plus the participant->room index.
// Every membership change goes through mu, and mu is always taken before
// any Room.mu.
type RoomManager struct {
	mu            sync.RWMutex
	rooms         map[domain.RoomID]*Room
	byParticipant map[domain.ParticipantID]domain.RoomID

	removeEmpty bool
	now         func() time.Time
}

type Option func(*RoomManager)

// WithRemoveEmpty drops a room as soon as its last participant leaves.
func WithRemoveEmpty(on bool) Option {
	return func(rm *RoomManager) { rm.removeEmpty = on }
}

func WithClock(now func() time.Time) Option {
	return func(rm *RoomManager) { rm.now = now }
}

func NewRoomManager(opts ...Option) *RoomManager {
	rm := &RoomManager{
		rooms:         make(map[domain.RoomID]*Room),
		byParticipant: make(map[domain.ParticipantID]domain.RoomID),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

// JoinResult describes a join attempt. Previous is set whenever an
// existing membership was released, even when the join itself failed.
type JoinResult struct {
	Room     *Room
	Previous *Room
}

func (rm *RoomManager) CreateRoom(name string, maxParticipants uint32) *Room {
	room := newRoom(name, maxParticipants, rm.now())

	rm.mu.Lock()
	rm.rooms[room.id] = room
	rm.mu.Unlock()

	log.Info().Str("module", "core.rooms").Str("room_id", string(room.id)).Str("name", name).Uint32("max", maxParticipants).Msg("room created")
	return room
}

func (rm *RoomManager) GetRoom(id domain.RoomID) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, ok := rm.rooms[id]
	return room, ok
}

// List returns room infos ordered by creation time.
func (rm *RoomManager) List() []RoomInfo {
	rm.mu.RLock()
	out := make([]RoomInfo, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		out = append(out, r.Info())
	}
	rm.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (rm *RoomManager) RoomOf(pid domain.ParticipantID) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	id, ok := rm.byParticipant[pid]
	if !ok {
		return nil, false
	}
	room, ok := rm.rooms[id]
	return room, ok
}

// Join places p into the room. Any existing membership is released first,
// then the target is looked up and checked for lock and capacity, all in one
// critical section. A failed join therefore leaves p in no room.
func (rm *RoomManager) Join(roomID domain.RoomID, p domain.Participant) (JoinResult, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var res JoinResult
	if prevID, ok := rm.byParticipant[p.ID]; ok {
		delete(rm.byParticipant, p.ID)
		if prev, ok := rm.rooms[prevID]; ok {
			prev.remove(p.ID)
			res.Previous = prev
			defer rm.collectLocked(prev)
		}
	}

	target, ok := rm.rooms[roomID]
	if !ok {
		return res, ErrRoomNotFound
	}
	if err := target.admit(p); err != nil {
		log.Info().Err(err).Str("module", "core.rooms").Str("sid", string(p.ID)).Str("room_id", string(roomID)).Bool("released", res.Previous != nil).Msg("join refused")
		return res, err
	}
	rm.byParticipant[p.ID] = roomID
	res.Room = target

	log.Info().Str("module", "core.rooms").Str("sid", string(p.ID)).Str("room_id", string(roomID)).Str("username", p.Username).Msg("participant joined")
	return res, nil
}

// Leave releases the participant's membership and returns the room it left.
func (rm *RoomManager) Leave(pid domain.ParticipantID) (*Room, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	roomID, ok := rm.byParticipant[pid]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	delete(rm.byParticipant, pid)

	room, ok := rm.rooms[roomID]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	room.remove(pid)
	rm.collectLocked(room)

	log.Info().Str("module", "core.rooms").Str("sid", string(pid)).Str("room_id", string(roomID)).Msg("participant left")
	return room, nil
}

// SetAudio returns false when the participant is in no room.
func (rm *RoomManager) SetAudio(pid domain.ParticipantID, enabled bool) (*Room, bool) {
	return rm.updateMember(pid, func(p *domain.Participant) { p.AudioEnabled = enabled })
}

// SetVideo returns false when the participant is in no room.
func (rm *RoomManager) SetVideo(pid domain.ParticipantID, enabled bool) (*Room, bool) {
	return rm.updateMember(pid, func(p *domain.Participant) { p.VideoEnabled = enabled })
}

func (rm *RoomManager) updateMember(pid domain.ParticipantID, fn func(p *domain.Participant)) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	roomID, ok := rm.byParticipant[pid]
	if !ok {
		return nil, false
	}
	room, ok := rm.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room, room.update(pid, fn)
}

func (rm *RoomManager) SetLocked(id domain.RoomID, locked bool) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	room, ok := rm.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	room.setLocked(locked)
	log.Info().Str("module", "core.rooms").Str("room_id", string(id)).Bool("locked", locked).Msg("room lock changed")
	return nil
}

// DeleteRoom removes the room and releases every member. The evicted
// participant ids are returned so callers can notify them.
func (rm *RoomManager) DeleteRoom(id domain.RoomID) ([]domain.ParticipantID, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	room, ok := rm.rooms[id]
	if !ok {
		return nil, false
	}
	delete(rm.rooms, id)
	ids := room.ParticipantIDs()
	for _, pid := range ids {
		room.remove(pid)
		delete(rm.byParticipant, pid)
	}
	log.Info().Str("module", "core.rooms").Str("room_id", string(id)).Int("evicted", len(ids)).Msg("room deleted")
	return ids, true
}

// collectLocked drops an empty room when removeEmpty is on. mu must be held.
func (rm *RoomManager) collectLocked(room *Room) {
	if !rm.removeEmpty || room.Count() > 0 {
		return
	}
	delete(rm.rooms, room.id)
	log.Info().Str("module", "core.rooms").Str("room_id", string(room.id)).Msg("empty room removed")
}

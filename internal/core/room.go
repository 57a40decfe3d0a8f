package core

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/pqvoice/internal/domain"
)

// RoomInfo is a read-only view for listings.
type RoomInfo struct {
	ID              domain.RoomID `json:"id"`
	Name            string        `json:"name"`
	Participants    int           `json:"participants"`
	MaxParticipants uint32        `json:"max_participants"`
	IsLocked        bool          `json:"is_locked"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Room is a threadsafe in-memory room. Membership is only mutated by the
// RoomManager that owns it, so readers never observe a participant in two
// rooms.
type Room struct {
	id        domain.RoomID
	name      string
	createdAt time.Time
	max       uint32

	mu      sync.RWMutex
	locked  bool
	members map[domain.ParticipantID]*domain.Participant
}

func newRoom(name string, maxParticipants uint32, now time.Time) *Room {
	return &Room{
		id:        domain.NewRoomID(),
		name:      name,
		createdAt: now,
		max:       maxParticipants,
		members:   make(map[domain.ParticipantID]*domain.Participant),
	}
}

func (r *Room) ID() domain.RoomID       { return r.id }
func (r *Room) Name() string            { return r.name }
func (r *Room) CreatedAt() time.Time    { return r.createdAt }
func (r *Room) MaxParticipants() uint32 { return r.max }

func (r *Room) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomInfo{
		ID:              r.id,
		Name:            r.name,
		Participants:    len(r.members),
		MaxParticipants: r.max,
		IsLocked:        r.locked,
		CreatedAt:       r.createdAt,
	}
}

// Participants returns copies ordered by join time.
func (r *Room) Participants() []domain.Participant {
	r.mu.RLock()
	out := make([]domain.Participant, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func (r *Room) ParticipantIDs() []domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ParticipantID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

func (r *Room) Participant(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.members[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (r *Room) Has(id domain.ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

// admit checks lock and capacity and inserts p as one step.
func (r *Room) admit(p domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrRoomLocked
	}
	if uint32(len(r.members)) >= r.max {
		return ErrRoomFull
	}
	r.members[p.ID] = &p
	return nil
}

func (r *Room) remove(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[id]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.members, id)
	return *p, true
}

func (r *Room) update(id domain.ParticipantID, fn func(p *domain.Participant)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

func (r *Room) setLocked(locked bool) {
	r.mu.Lock()
	r.locked = locked
	r.mu.Unlock()
}

package app

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Sink        core.EventSink
	Username    string
	ConnectedAt time.Time
	AudioKey    []byte
}

func (e *connEntry) wipeKey() {
	for i := range e.AudioKey {
		e.AudioKey[i] = 0
	}
	e.AudioKey = nil
}

// UserEntry is a snapshot of one live connection.
type UserEntry struct {
	ID          domain.ParticipantID
	Username    string
	ConnectedAt time.Time
}

// Registry is the global participant->connection table. Its lock is a leaf:
// it is never held while calling into the room registry.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ParticipantID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ParticipantID]*connEntry),
	}
}

func (r *Registry) Bind(pid domain.ParticipantID, sink core.EventSink, connectedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[pid] = &connEntry{Sink: sink, ConnectedAt: connectedAt}
	log.Info().Str("module", "app.registry").Str("sid", string(pid)).Msg("bound connection")
}

func (r *Registry) Unbind(pid domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[pid]; ok {
		e.wipeKey()
	}
	delete(r.conns, pid)
	log.Info().Str("module", "app.registry").Str("sid", string(pid)).Msg("unbind connection")
}

func (r *Registry) Sink(pid domain.ParticipantID) (core.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[pid]; ok {
		return e.Sink, true
	}
	return nil, false
}

func (r *Registry) SetUsername(pid domain.ParticipantID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[pid]
	if !ok {
		return false
	}
	e.Username = name
	log.Info().Str("module", "app.registry").Str("sid", string(pid)).Str("username", name).Msg("updated username")
	return true
}

func (r *Registry) Username(pid domain.ParticipantID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[pid]
	if !ok || e.Username == "" {
		return "", false
	}
	return e.Username, true
}

// SetAudioKey stores the key pid's relay datagrams are sealed with,
// wiping any previous one.
func (r *Registry) SetAudioKey(pid domain.ParticipantID, key []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[pid]
	if !ok {
		return false
	}
	e.wipeKey()
	e.AudioKey = append([]byte(nil), key...)
	return true
}

// AudioKey returns a copy of pid's audio key.
func (r *Registry) AudioKey(pid domain.ParticipantID) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[pid]
	if !ok || e.AudioKey == nil {
		return nil, false
	}
	return append([]byte(nil), e.AudioKey...), true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Users returns every live connection ordered by connect time.
func (r *Registry) Users() []UserEntry {
	r.mu.RLock()
	out := make([]UserEntry, 0, len(r.conns))
	for pid, e := range r.conns {
		out = append(out, UserEntry{ID: pid, Username: e.Username, ConnectedAt: e.ConnectedAt})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

package orch

import (
	"errors"
	"time"

	"github.com/dkeye/pqvoice/internal/app"
	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/rs/zerolog/log"
)

var ErrNotInRoom = errors.New("Not in a room")

// MediaRelay is the audio relay's view of connection lifecycle.
type MediaRelay interface {
	Forget(pid domain.ParticipantID)
}

// Orchestrator applies room operations and fans resulting events out to
// the affected connections. Rooms is always called without Registry held.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.Rooms
	Policy   app.Policy
	Relays   MediaRelay

	DefaultMaxParticipants uint32
	Now                    func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Connect registers the outbound sink of a new connection.
func (o *Orchestrator) Connect(pid domain.ParticipantID, sink core.EventSink) {
	o.Registry.Bind(pid, sink, o.now())
}

// Disconnect releases the participant's membership and tells the former
// room-mates before unregistering. The caller tears the sink down after.
func (o *Orchestrator) Disconnect(pid domain.ParticipantID) {
	if room, err := o.Rooms.Leave(pid); err == nil {
		o.broadcast(room, pid, &proto.ParticipantLeft{ParticipantID: string(pid)})
	}
	if o.Relays != nil {
		o.Relays.Forget(pid)
	}
	o.Registry.Unbind(pid)
	log.Info().Str("module", "orch").Str("sid", string(pid)).Msg("disconnected")
}

// Login records the display name of a connection.
func (o *Orchestrator) Login(pid domain.ParticipantID, username string) error {
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}
	if !o.Registry.SetUsername(pid, username) {
		return core.ErrParticipantNotFound
	}
	return nil
}

// Send delivers one message to one participant, applying the backpressure
// policy when its queue is full.
func (o *Orchestrator) Send(pid domain.ParticipantID, msg proto.Message) {
	sink, ok := o.Registry.Sink(pid)
	if !ok {
		return
	}
	err := sink.Enqueue(msg)
	if err == nil || errors.Is(err, core.ErrConnClosed) {
		return
	}
	if !errors.Is(err, core.ErrBackpressure) {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(pid)).Msg("enqueue")
		return
	}
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(pid, msg) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("sid", string(pid)).Str("type", string(msg.Type())).Msg("outbound queue full, kicking")
		sink.Kick()
	case app.DropFrame:
		log.Debug().Str("module", "orch").Str("sid", string(pid)).Str("type", string(msg.Type())).Msg("outbound queue full, dropped")
	case app.NoAction:
	}
}

// broadcast sends msg to every current member of room except skip.
// An empty skip includes everyone.
func (o *Orchestrator) broadcast(room *core.Room, skip domain.ParticipantID, msg proto.Message) int {
	sent := 0
	for _, pid := range room.ParticipantIDs() {
		if pid == skip {
			continue
		}
		o.Send(pid, msg)
		sent++
	}
	log.Debug().Str("module", "orch").Str("room_id", string(room.ID())).Str("type", string(msg.Type())).Int("sent_to", sent).Msg("broadcast")
	return sent
}

package app

import (
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/proto"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens when a participant's outbound queue is full.
type Policy interface {
	OnBackPressure(pid domain.ParticipantID, msg proto.Message) BackpressureAction
}

// KickPolicy disconnects slow consumers.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.ParticipantID, proto.Message) BackpressureAction {
	return KickMember
}

// DropPolicy discards the event and keeps the connection.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.ParticipantID, proto.Message) BackpressureAction {
	return DropFrame
}

// Overflow modes for outbound.overflow.
const (
	OverflowDisconnect = "disconnect"
	OverflowDropNewest = "drop_newest"
	OverflowDropOldest = "drop_oldest"
)

// PolicyFor maps an overflow mode to the orchestrator policy. drop_oldest
// is handled inside the queue itself, so nothing reaches the policy.
func PolicyFor(mode string) Policy {
	switch mode {
	case OverflowDropNewest, OverflowDropOldest:
		return DropPolicy{}
	default:
		return KickPolicy{}
	}
}

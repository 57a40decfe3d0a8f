package relay

import (
	"net"
	"sync/atomic"
	"time"
)

type EndpointState int32

const (
	EndpointOk EndpointState = iota
	EndpointMuted
	EndpointDelete
)

func (s EndpointState) String() string {
	switch s {
	case EndpointOk:
		return "ok"
	case EndpointMuted:
		return "muted"
	case EndpointDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Endpoint is the last UDP address a participant sent audio from.
// Muted endpoints still receive; they are only skipped as a source.
type Endpoint struct {
	Addr     net.Addr
	state    atomic.Int32 // zero is EndpointOk
	lastSeen atomic.Int64 // unix nanos
}

func NewEndpoint(addr net.Addr, now time.Time) *Endpoint {
	ep := &Endpoint{Addr: addr}
	ep.Touch(now)
	return ep
}

func (ep *Endpoint) State() EndpointState {
	return EndpointState(ep.state.Load())
}

func (ep *Endpoint) MarkOk() {
	ep.state.CompareAndSwap(int32(EndpointMuted), int32(EndpointOk))
}

func (ep *Endpoint) MarkMuted() {
	ep.state.CompareAndSwap(int32(EndpointOk), int32(EndpointMuted))
}

// MarkDelete is terminal.
func (ep *Endpoint) MarkDelete() {
	ep.state.Store(int32(EndpointDelete))
}

func (ep *Endpoint) Touch(now time.Time) {
	ep.lastSeen.Store(now.UnixNano())
}

func (ep *Endpoint) LastSeen() time.Time {
	return time.Unix(0, ep.lastSeen.Load())
}

// Expired reports whether nothing was heard within ttl. A zero ttl never expires.
func (ep *Endpoint) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(ep.LastSeen()) > ttl
}

func (ep *Endpoint) usable(now time.Time, ttl time.Duration) bool {
	return ep.State() != EndpointDelete && !ep.Expired(now, ttl)
}

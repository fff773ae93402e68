package events

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
)

const (
	// EventLease is emitted when an address has been bound to a client
	EventLease caddy.EventName = "lease"

	// EventRelease is emitted when a client released its address
	EventRelease caddy.EventName = "release"
)

// Lease is the payload of lease events
type Lease struct {
	// Network is the network served by the emitting node
	Network string

	Address net.IP
	HwAddr  net.HardwareAddr

	// Expires is the time the lease ends as seen by the client. Zero
	// for EventRelease
	Expires time.Time
}

func (l *Lease) String() string {
	return fmt.Sprintf("%s (%s)", l.Address, l.HwAddr)
}

type (
	// LeaseEventHook is the function type that can receive lease-based events
	LeaseEventHook func(event caddy.EventName, l *Lease) error
)

var (
	validLeaseEvents = map[caddy.EventName]struct{}{
		EventLease:   {},
		EventRelease: {},
	}
)

// EmitLeaseEvent emits a lease-based event
func EmitLeaseEvent(event caddy.EventName, l *Lease) {
	if _, ok := validLeaseEvents[event]; !ok {
		log.Errorf("invalid lease event type %q\n%s", event, debug.Stack())
		return
	}

	caddy.EmitEvent(event, l)
}

// RegisterLeaseEventHook registers hook under name. It is only called for
// the given event. Names must be unique
func RegisterLeaseEventHook(name string, event caddy.EventName, hook LeaseEventHook) {
	if _, ok := validLeaseEvents[event]; !ok {
		panic("invalid lease event name")
	}

	caddy.RegisterEventHook(name, func(e caddy.EventName, value interface{}) error {
		if e != event {
			return nil
		}

		l, ok := value.(*Lease)
		if !ok {
			return nil
		}

		return hook(e, l)
	})
}

// Emitter dispatches lease notifications of a network as caddy events
type Emitter struct {
	Network string
}

// Notify emits event for the lease of addr held by hw
func (e *Emitter) Notify(_ context.Context, event caddy.EventName, addr net.IP, hw net.HardwareAddr, expires time.Time) {
	EmitLeaseEvent(event, &Lease{
		Network: e.Network,
		Address: addr,
		HwAddr:  hw,
		Expires: expires,
	})
}

package events

import (
	"sync"

	"github.com/caddyserver/caddy"
)

// Dispatcher routes lease events of a network to the hooks configured for
// that network. A dispatcher registers a single caddy event hook the first
// time Set is called so configurations can be replaced when caddy reloads
type Dispatcher struct {
	name string
	once sync.Once

	mu    sync.RWMutex
	hooks map[string][]LeaseEventHook
}

// NewDispatcher returns a dispatcher whose caddy event hook is
// registered under name
func NewDispatcher(name string) *Dispatcher {
	return &Dispatcher{
		name:  name,
		hooks: make(map[string][]LeaseEventHook),
	}
}

// Set replaces the hooks of network
func (d *Dispatcher) Set(network string, hooks ...LeaseEventHook) {
	d.once.Do(func() {
		caddy.RegisterEventHook(d.name, func(e caddy.EventName, value interface{}) error {
			if _, ok := validLeaseEvents[e]; !ok {
				return nil
			}

			l, ok := value.(*Lease)
			if !ok {
				return nil
			}

			return d.Dispatch(e, l)
		})
	})

	d.mu.Lock()
	defer d.mu.Unlock()

	d.hooks[network] = hooks
}

// Dispatch calls all hooks configured for the network of l and returns
// the first error
func (d *Dispatcher) Dispatch(event caddy.EventName, l *Lease) error {
	d.mu.RLock()
	hooks := d.hooks[l.Network]
	d.mu.RUnlock()

	var firstErr error
	for _, h := range hooks {
		if err := h(event, l); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Package plugin defines the middleware chain every DHCP request passes
// before it reaches the lease engine.
package plugin

import (
	"context"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/engine"
)

type (
	// Handler for DHCP requests created by a plugin factory (see Plugin).
	// Each handler is responsible of calling the next handler in the chain
	// which was passed to Plugin. The last handler of every chain is the
	// lease engine
	Handler interface {
		// Name returns the name of the handler
		Name() string

		// ServeDHCP is called for each DHCPv4 request and reports how the
		// request has been handled
		ServeDHCP(ctx context.Context, req *dhcpv4.DHCPv4) (engine.Outcome, error)
	}

	// Plugin represents the setup func for a plugin. It is passed the
	// next handler in the chain
	Plugin func(Handler) Handler

	// HandlerFunc allows to easily wrap a function as a Handler type
	HandlerFunc func(ctx context.Context, req *dhcpv4.DHCPv4) (engine.Outcome, error)
)

// ServeDHCP implements the Handler interface
func (fn HandlerFunc) ServeDHCP(ctx context.Context, req *dhcpv4.DHCPv4) (engine.Outcome, error) {
	return fn(ctx, req)
}

// Name returns "HandlerFunc" and implements the Handler interface
func (fn HandlerFunc) Name() string {
	return "HandlerFunc"
}

// Chain builds a handler chain from plugins that ends in last. The first
// plugin is the first to see a request
func Chain(last Handler, plugins ...Plugin) Handler {
	h := last
	for i := len(plugins) - 1; i >= 0; i-- {
		h = plugins[i](h)
	}

	return h
}

// compile time check
var _ Handler = (*engine.Engine)(nil)

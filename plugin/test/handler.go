package test

import (
	"context"
	"errors"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/engine"
)

type (
	// HandlerFunc implements plugin.Handler
	HandlerFunc func(ctx context.Context, req *dhcpv4.DHCPv4) (engine.Outcome, error)
)

// ServeDHCP implements plugin.Handler
func (fn HandlerFunc) ServeDHCP(ctx context.Context, req *dhcpv4.DHCPv4) (engine.Outcome, error) {
	return fn(ctx, req)
}

// Name implements plugin.Handler
func (fn HandlerFunc) Name() string {
	return "test.HandlerFunc"
}

// OutcomeHandler returns a handler that always reports o
func OutcomeHandler(o engine.Outcome) HandlerFunc {
	return func(context.Context, *dhcpv4.DHCPv4) (engine.Outcome, error) {
		return o, nil
	}
}

var (
	// ErrorHandler is a plugin.Handler and always returns an error
	ErrorHandler = HandlerFunc(func(context.Context, *dhcpv4.DHCPv4) (engine.Outcome, error) {
		return engine.Ignored, errors.New("simulated error")
	})

	// NoOpHandler is a No-Operation plugin.Handler
	NoOpHandler = OutcomeHandler(engine.Ignored)
)

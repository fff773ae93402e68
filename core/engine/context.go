package engine

import (
	"context"
	"net"
)

type clientKey struct{}

// WithClient associates the address of the requesting client with ctx
func WithClient(ctx context.Context, addr net.Addr) context.Context {
	return context.WithValue(ctx, clientKey{}, addr)
}

// ClientAddr returns the client address associated with ctx or nil
func ClientAddr(ctx context.Context) net.Addr {
	addr, _ := ctx.Value(clientKey{}).(net.Addr)
	return addr
}

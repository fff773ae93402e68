package serverid

import (
	"context"
	"net"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/engine"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/plugin"
)

type serverID struct {
	next plugin.Handler
	id   net.IP
	l    log.Logger
}

// Name returns "serverid" and implements plugin.Handler
func (*serverID) Name() string {
	return "serverid"
}

// ServeDHCP drops requests that carry the server identifier of another
// server and implements plugin.Handler
func (s *serverID) ServeDHCP(ctx context.Context, req *dhcpv4.DHCPv4) (engine.Outcome, error) {
	reqID := req.ServerIdentifier()
	if reqID != nil && !reqID.IsUnspecified() && !reqID.Equal(s.id) {
		log.With(ctx, s.l).Debugf("dropping %s for server %s", req.MessageType(), reqID)
		return engine.Ignored, nil
	}

	return s.next.ServeDHCP(ctx, req)
}

package engine

import (
	"context"
	"net"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/log"
)

// requestedAddress returns the address a client asks for. The requested
// IP address option takes precedence over ciaddr. nil is returned if the
// client did not name an address
func requestedAddress(req *dhcpv4.DHCPv4) net.IP {
	if ip := req.RequestedIPAddress(); ip != nil && !ip.IsUnspecified() {
		return ip.To4()
	}

	if ip := req.ClientIPAddr; ip != nil && !ip.IsUnspecified() {
		return ip.To4()
	}

	return nil
}

// Request answers a DHCPREQUEST. Requests for addresses of owned blocks
// are acknowledged unless another client holds the lease. Requests for
// blocks owned by a peer are forwarded and answered later. A request
// without an address is matched against the leases offered to the client
func (e *Engine) Request(ctx context.Context, req *dhcpv4.DHCPv4) (Outcome, error) {
	addr := requestedAddress(req)

	if addr == nil {
		b, off, ok := e.findOffered(block.ToHWAddr(req.ClientHWAddr), req.TransactionID)
		if !ok {
			return e.nak(ctx, req, "no matching offer")
		}

		return e.commit(ctx, req, b, off)
	}

	res := e.blocks.Resolve(addr)
	switch res.Kind {
	case block.Local:
		return e.commit(ctx, req, res.Block, res.Offset)

	case block.Remote:
		return e.forward(ctx, req, res)
	}

	return e.nak(ctx, req, "address out of range")
}

// commit binds the lease at off to the requesting client and sends an ACK
func (e *Engine) commit(ctx context.Context, req *dhcpv4.DHCPv4, b *block.Block, off int) (Outcome, error) {
	hw := block.ToHWAddr(req.ClientHWAddr)

	lease := b.Lease(off)
	if lease == nil || b.Reserved(off) {
		return e.nak(ctx, req, "address not assignable")
	}

	if lease.ConflictsWith(hw) {
		return e.nak(ctx, req, "address in use by "+lease.HwAddr.HardwareAddr(len(req.ClientHWAddr)).String())
	}

	now := e.now()
	lease.Bind(hw, req.TransactionID, now.Add(e.cfg.LeaseTime+e.cfg.ServerDelta))

	addr := b.Addr(off)
	log.With(ctx, e.l).Infof("leased %s until %s", addr, lease.Expires)

	if err := e.reply(ctx, req, ClientAddr(ctx), dhcpv4.MessageTypeAck, addr, e.cfg.LeaseTime); err != nil {
		return Acked, err
	}

	e.notify(ctx, events.EventLease, addr, req.ClientHWAddr, now.Add(e.cfg.LeaseTime))

	return Acked, nil
}

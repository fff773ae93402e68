package engine

import (
	"context"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/peer"
)

// Release handles a DHCPRELEASE. The lease named by ciaddr is freed if it
// is held by the releasing client. Releases of addresses owned by a peer
// are forwarded to it and only reported as released if our copy of the
// lease was held by the client. RELEASE messages are never answered
func (e *Engine) Release(ctx context.Context, req *dhcpv4.DHCPv4) (Outcome, error) {
	l := log.With(ctx, e.l)
	hw := block.ToHWAddr(req.ClientHWAddr)

	addr := req.ClientIPAddr.To4()
	if addr == nil || addr.IsUnspecified() {
		l.Debugf("ignoring release without client address")
		return Ignored, nil
	}

	res := e.blocks.Resolve(addr)
	switch res.Kind {
	case block.Local:
		lease := res.Block.Lease(res.Offset)
		if lease == nil || lease.State == block.Free {
			l.Debugf("ignoring release of unused address %s", addr)
			return Ignored, nil
		}

		if !lease.HeldBy(hw) {
			l.Warnf("rejecting release of %s: leased to %s", addr, lease.HwAddr.HardwareAddr(len(req.ClientHWAddr)))
			return Rejected, nil
		}

		lease.Reset()
		l.Infof("released %s", addr)

	case block.Remote:
		b := res.Block
		if b.State != block.StateClaimed || b.Owner == nil {
			l.Infof("ignoring release of %s: %s has no owner", addr, b)
			return Ignored, nil
		}

		lease := b.Lease(res.Offset)
		held := lease != nil && lease.HeldBy(hw)
		if held {
			lease.Reset()
		}

		if err := e.peers.SendToPeer(ctx, peer.NewRelease(req, addr), b.Owner); err != nil {
			l.Errorf("failed to forward release of %s to %s: %s", addr, b.Owner, err)
			return Ignored, err
		}

		l.Infof("forwarded release of %s to %s", addr, b.Owner)

		// the owner checks the holder itself
		if !held {
			return Forwarded, nil
		}

	default:
		l.Debugf("ignoring release of %s: out of range", addr)
		return Ignored, nil
	}

	e.notify(ctx, events.EventRelease, addr, req.ClientHWAddr, time.Time{})
	return Released, nil
}

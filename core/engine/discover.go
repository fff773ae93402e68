package engine

import (
	"context"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/log"
)

// Discover answers a DHCPDISCOVER by offering the first free lease of an
// owned block. A retransmitted DISCOVER is offered the same address again.
// If no owned block has a free lease NeedBlocks is returned and nothing is
// sent
func (e *Engine) Discover(ctx context.Context, req *dhcpv4.DHCPv4) (Outcome, error) {
	l := log.With(ctx, e.l)
	hw := block.ToHWAddr(req.ClientHWAddr)
	expires := e.now().Add(e.cfg.OfferTimeout)

	b, off, ok := e.findOffered(hw, req.TransactionID)
	if !ok {
		b = e.blocks.FindFreeBlock()
		if b == nil {
			l.Warnf("no free lease available for %s", req.ClientHWAddr)
			return NeedBlocks, nil
		}

		off, ok = b.FirstFree()
		if !ok {
			return NeedBlocks, nil
		}
	}

	b.Lease(off).Offer(hw, req.TransactionID, expires)

	addr := b.Addr(off)
	l.Debugf("offering %s from %s", addr, b)

	if err := e.reply(ctx, req, ClientAddr(ctx), dhcpv4.MessageTypeOffer, addr, e.cfg.LeaseTime); err != nil {
		return Offered, err
	}

	return Offered, nil
}

package engine

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/peer"
)

// HandlePeerMessage processes a relay message received from the peer at
// from. RenewLease and Release messages are handled as the owner of the
// block. LeaseAck and LeaseNak messages complete a request this node
// forwarded before
func (e *Engine) HandlePeerMessage(ctx context.Context, from net.IP, msg *peer.Message) error {
	switch msg.Type {
	case peer.TypeRenewLease:
		return e.renewForPeer(ctx, from, msg)

	case peer.TypeRelease:
		e.releaseForPeer(from, msg)
		return nil

	case peer.TypeLeaseAck, peer.TypeLeaseNak:
		return e.complete(ctx, msg)
	}

	return fmt.Errorf("unexpected peer message type %s", msg.Type)
}

// renewForPeer validates a forwarded request exactly like a local one
// and answers the peer with the result
func (e *Engine) renewForPeer(ctx context.Context, from net.IP, msg *peer.Message) error {
	reply := msg.Reply(peer.TypeLeaseNak, 0)

	res := e.blocks.Resolve(msg.Address)
	if res.Kind == block.Local {
		lease := res.Block.Lease(res.Offset)

		switch {
		case lease == nil || res.Block.Reserved(res.Offset):
			e.l.Infof("[peer] %s requested unassignable address %s", from, msg.Address)

		case lease.ConflictsWith(msg.HWAddr):
			e.l.Infof("[peer] %s requested %s which is in use by %s", from, msg.Address, lease.HwAddr.HardwareAddr(int(msg.HWAddrLen)))

		default:
			lease.Bind(msg.HWAddr, msg.TransactionID, e.now().Add(e.cfg.LeaseTime+e.cfg.ServerDelta))
			reply = msg.Reply(peer.TypeLeaseAck, uint32(e.cfg.LeaseTime/time.Second))
			e.l.Infof("[peer] leased %s to %s on behalf of %s", msg.Address, msg.ClientHWAddr(), from)
		}
	} else {
		e.l.Infof("[peer] %s requested %s which is not ours (%s)", from, msg.Address, res.Kind)
	}

	return e.peers.SendToPeer(ctx, reply, from)
}

// releaseForPeer frees a lease released by a client of another node
func (e *Engine) releaseForPeer(from net.IP, msg *peer.Message) {
	res := e.blocks.Resolve(msg.Address)
	if res.Kind != block.Local {
		e.l.Infof("[peer] %s released %s which is not ours (%s)", from, msg.Address, res.Kind)
		return
	}

	lease := res.Block.Lease(res.Offset)
	if lease == nil || !lease.HeldBy(msg.HWAddr) {
		e.l.Warnf("[peer] rejecting release of %s by %s: not the lease holder", msg.Address, msg.ClientHWAddr())
		return
	}

	lease.Reset()
	e.l.Infof("[peer] released %s on behalf of %s", msg.Address, from)
}

// complete answers the client of a forwarded request using the cached
// request. Answers without a matching request are dropped
func (e *Engine) complete(ctx context.Context, msg *peer.Message) error {
	key := pendingKey{xid: msg.TransactionID, hw: msg.HWAddr}

	entry, ok := e.pending.get(key)
	if !ok || !entry.Address.Equal(msg.Address) {
		e.l.Debugf("[peer] dropping unmatched %s", msg)
		return nil
	}
	e.pending.remove(key)

	var lease *block.Lease
	if res := e.blocks.Resolve(entry.Address); res.Kind == block.Remote {
		lease = res.Block.Lease(res.Offset)
	}

	now := e.now()
	ctx = WithClient(ctx, entry.Client)

	if msg.Type == peer.TypeLeaseNak {
		if lease != nil && lease.Matches(msg.HWAddr, msg.TransactionID) {
			lease.Reset()
		}

		e.l.Infof("[peer] owner rejected %s for %s", entry.Address, msg.ClientHWAddr())
		return e.reply(ctx, entry.Request, entry.Client, dhcpv4.MessageTypeNak, nil, 0)
	}

	granted := time.Duration(msg.LeaseSeconds) * time.Second
	if lease != nil {
		lease.Bind(msg.HWAddr, msg.TransactionID, now.Add(granted+e.cfg.ServerDelta))
	}

	e.l.Infof("[peer] owner granted %s to %s for %s", entry.Address, msg.ClientHWAddr(), granted)
	if err := e.reply(ctx, entry.Request, entry.Client, dhcpv4.MessageTypeAck, entry.Address, granted); err != nil {
		return err
	}

	e.notify(ctx, events.EventLease, entry.Address, entry.Request.ClientHWAddr, now.Add(granted))
	return nil
}

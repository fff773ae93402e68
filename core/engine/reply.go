package engine

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/log"
)

// options always sent with OFFER and ACK messages if configured
var defaultReplyOptions = []dhcpv4.OptionCode{
	dhcpv4.OptionSubnetMask,
	dhcpv4.OptionRouter,
	dhcpv4.OptionBroadcastAddress,
	dhcpv4.OptionTimeOffset,
}

// BuildReply creates the reply of type mt for req. Header fields are copied
// from req. OFFER and ACK messages carry yiaddr, the lease time, the server
// identifier and all configured options that are either sent by default or
// requested by the client. NAK messages only carry the message type.
// BuildReply never touches lease state
func (e *Engine) BuildReply(req *dhcpv4.DHCPv4, mt dhcpv4.MessageType, yiaddr net.IP, leaseTime time.Duration) (*dhcpv4.DHCPv4, error) {
	mods := []dhcpv4.Modifier{
		dhcpv4.WithMessageType(mt),
	}

	if mt != dhcpv4.MessageTypeNak {
		mods = append(mods,
			dhcpv4.WithYourIP(yiaddr),
			dhcpv4.WithLeaseTime(uint32(leaseTime/time.Second)),
		)

		if e.cfg.ServerID != nil {
			mods = append(mods,
				dhcpv4.WithServerIP(e.cfg.ServerID),
				dhcpv4.WithOption(dhcpv4.OptServerIdentifier(e.cfg.ServerID)),
			)
		}

		for _, code := range defaultReplyOptions {
			if opt, ok := e.cfg.Options.Get(code); ok {
				mods = append(mods, dhcpv4.WithOption(opt))
			}
		}

		for _, code := range req.ParameterRequestList() {
			if opt, ok := e.cfg.Options.Get(code); ok {
				mods = append(mods, dhcpv4.WithOption(opt))
			}
		}
	}

	resp, err := dhcpv4.NewReplyFromRequest(req, mods...)
	if err != nil {
		return nil, err
	}

	resp.HopCount = req.HopCount
	resp.ClientIPAddr = req.ClientIPAddr

	return resp, nil
}

// reply builds and sends the reply of type mt for req to the client at to.
// Lease state must already be updated
func (e *Engine) reply(ctx context.Context, req *dhcpv4.DHCPv4, to net.Addr, mt dhcpv4.MessageType, yiaddr net.IP, leaseTime time.Duration) error {
	resp, err := e.BuildReply(req, mt, yiaddr, leaseTime)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrReply, err)
	}

	if to == nil {
		return fmt.Errorf("%w: no client address", ErrReply)
	}

	log.With(ctx, e.l).Debugf("<- %s %s to %s", mt, yiaddr, to)

	if err := e.client.SendToClient(ctx, resp, to); err != nil {
		return fmt.Errorf("%w: %s", ErrReply, err)
	}

	return nil
}

// nak rejects req
func (e *Engine) nak(ctx context.Context, req *dhcpv4.DHCPv4, reason string) (Outcome, error) {
	log.With(ctx, e.l).Infof("rejecting request for %s: %s", requestedAddress(req), reason)

	if err := e.reply(ctx, req, ClientAddr(ctx), dhcpv4.MessageTypeNak, nil, 0); err != nil {
		return Nacked, err
	}

	return Nacked, nil
}

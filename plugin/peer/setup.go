// Package peer configures the address the peer transport listens on:
//
//	peer 0.0.0.0:1234
package peer

import (
	"net"
	"strconv"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
	"github.com/nextdhcp/ddhcp/core/peer"
)

func init() {
	caddy.RegisterPlugin("peer", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupPeer,
	})
}

func setupPeer(c *caddy.Controller) error {
	c.Next()

	if !c.NextArg() {
		return c.ArgErr()
	}
	addr := c.Val()

	if c.NextArg() {
		return c.ArgErr()
	}

	if c.Next() {
		return c.Err("peer can only be set once")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		port = strconv.Itoa(peer.DefaultPort)
	}

	if host != "" && net.ParseIP(host).To4() == nil {
		return c.Errf("invalid peer address %q: expected an IPv4 address", addr)
	}

	if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
		return c.Errf("invalid peer port %q", port)
	}

	dhcpserver.GetConfig(c).PeerAddr = net.JoinHostPort(host, port)

	return nil
}

// Package ifname selects the network interface a network is served on:
//
//	interface eth0
package ifname

import (
	"net"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
)

func init() {
	caddy.RegisterPlugin("interface", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupInterface,
	})
}

func setupInterface(c *caddy.Controller) error {
	config := dhcpserver.GetConfig(c)

	for c.Next() {
		if !c.NextArg() {
			return c.ArgErr()
		}
		name := c.Val()

		if c.NextArg() {
			return c.ArgErr()
		}

		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return c.Errf("failed to find interface with name %s: %s", name, err)
		}

		config.Interface = *ifi
	}

	return nil
}

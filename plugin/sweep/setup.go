// Package sweep configures the interval of timeout sweeps:
//
//	sweep 1s
package sweep

import (
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
)

func init() {
	caddy.RegisterPlugin("sweep", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupSweep,
	})
}

func setupSweep(c *caddy.Controller) error {
	c.Next()

	if !c.NextArg() {
		return c.ArgErr()
	}

	d, err := time.ParseDuration(c.Val())
	if err != nil {
		return c.SyntaxErr("time.Duration")
	}

	if d <= 0 {
		return c.Errf("sweep interval must be positive: %s", d)
	}

	if c.NextArg() {
		return c.ArgErr()
	}

	if c.Next() {
		return c.Err("sweep can only be set once")
	}

	dhcpserver.GetConfig(c).SweepInterval = d

	return nil
}

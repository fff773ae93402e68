// Package lease registers the directives controlling lease timings:
//
//	lease 1h
//	offer-timeout 12s
//	server-delta 10s
//	forward-timeout 12s
package lease

import (
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
)

func init() {
	register("lease", false, func(cfg *dhcpserver.Config) *time.Duration { return &cfg.LeaseTime })
	register("offer-timeout", false, func(cfg *dhcpserver.Config) *time.Duration { return &cfg.OfferTimeout })
	register("server-delta", true, func(cfg *dhcpserver.Config) *time.Duration { return &cfg.ServerDelta })
	register("forward-timeout", false, func(cfg *dhcpserver.Config) *time.Duration { return &cfg.ForwardTimeout })
}

func register(name string, allowZero bool, field func(*dhcpserver.Config) *time.Duration) {
	caddy.RegisterPlugin(name, caddy.Plugin{
		ServerType: "dhcpv4",
		Action: func(c *caddy.Controller) error {
			return setupDuration(c, allowZero, field)
		},
	})
}

func setupDuration(c *caddy.Controller, allowZero bool, field func(*dhcpserver.Config) *time.Duration) error {
	config := dhcpserver.GetConfig(c)

	for c.Next() {
		if !c.NextArg() {
			return c.ArgErr()
		}

		d, err := time.ParseDuration(c.Val())
		if err != nil {
			return c.SyntaxErr("time.Duration")
		}

		if d < 0 || (d == 0 && !allowZero) {
			return c.Errf("invalid duration for %s: %s", c.Val(), d)
		}

		if c.NextArg() {
			return c.ArgErr()
		}

		*field(config) = d
	}

	return nil
}

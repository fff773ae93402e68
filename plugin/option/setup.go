// Package option configures the DHCP options announced to clients
//
//	option router 10.0.0.1
//	option {
//	    nameserver 10.0.0.2 10.0.0.3
//	    domain-name example.com
//	    0xfc 0a0b
//	}
package option

import (
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
	"github.com/nextdhcp/ddhcp/core/option"
)

func init() {
	caddy.RegisterPlugin("option", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupOption,
	})
}

func setupOption(c *caddy.Controller) error {
	store := dhcpserver.GetConfig(c).Options

	parse := func(name string, values []string) error {
		if len(values) == 0 {
			return c.ArgErr()
		}

		code, value, err := option.ParseKnown(name, values)
		if err != nil {
			return c.Err(err.Error())
		}

		store.Set(code, value)
		return nil
	}

	for c.Next() {
		args := c.RemainingArgs()
		if len(args) > 0 {
			if err := parse(args[0], args[1:]); err != nil {
				return err
			}
			continue
		}

		found := false
		for c.NextBlock() {
			found = true
			if err := parse(c.Val(), c.RemainingArgs()); err != nil {
				return err
			}
		}

		if !found {
			return c.ArgErr()
		}
	}

	return nil
}

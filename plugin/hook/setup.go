// Package hook runs an external script whenever an address is leased or
// released:
//
//	hook /etc/ddhcp/hook.sh {
//	    if hwaddr != 'aa:bb:cc:dd:ee:ff'
//	    timeout 5s
//	}
package hook

import (
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/matcher"
)

var dispatcher = events.NewDispatcher("hook")

func init() {
	caddy.RegisterPlugin("hook", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupHook,
	})
}

func setupHook(c *caddy.Controller) error {
	scripts, err := parseHooks(c)
	if err != nil {
		return err
	}

	hooks := make([]events.LeaseEventHook, len(scripts))
	for i, s := range scripts {
		hooks[i] = s.handle
	}

	dispatcher.Set(dhcpserver.GetConfig(c).Network.String(), hooks...)

	return nil
}

func parseHooks(c *caddy.Controller) ([]*script, error) {
	var scripts []*script
	l := log.GetLogger(c, "hook")

	for c.Next() {
		if !c.NextArg() {
			return nil, c.ArgErr()
		}

		s := &script{
			cmd:     c.Val(),
			args:    c.RemainingArgs(),
			timeout: DefaultTimeout,
			run:     execCommand,
			l:       l,
		}

		// ParseConditions does not advance the dispenser
		m, err := matcher.SetupMatcher(c)
		if err != nil {
			return nil, err
		}
		s.Matcher = m

		for c.NextBlock() {
			switch c.Val() {
			case "if":
				c.RemainingArgs()

			case "if_op":
				c.NextArg()

			case "timeout":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}

				d, err := time.ParseDuration(c.Val())
				if err != nil || d <= 0 {
					return nil, c.SyntaxErr("positive time.Duration")
				}
				s.timeout = d

			default:
				return nil, c.SyntaxErr("if, if_op or timeout")
			}
		}

		scripts = append(scripts, s)
	}

	return scripts, nil
}

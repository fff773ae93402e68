package gotify

import (
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/matcher"
)

var dispatcher = events.NewDispatcher("gotify")

func init() {
	caddy.RegisterPlugin("gotify", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupGotify,
	})
}

func setupGotify(c *caddy.Controller) error {
	g, err := makeGotifyPlugin(c)
	if err != nil {
		return err
	}

	g.l = log.GetLogger(c, "gotify")
	dispatcher.Set(dhcpserver.GetConfig(c).Network.String(), g.handle)

	return nil
}

// makeGotifyPlugin parses one or more gotify directives
//
//	gotify event == 'lease' {
//	    server https://push.example.com app-token
//	    title "New lease"
//	    message "{address} leased to {hwaddr}"
//	}
//
// The server and token are inherited from the previous gotify directive
// if omitted
func makeGotifyPlugin(c *caddy.Controller) (*gotifyPlugin, error) {
	g := &gotifyPlugin{}

	for c.Next() {
		cond, err := matcher.SetupMatcherRemainingArgs(c)
		if err != nil {
			return nil, err
		}

		n := &notification{
			Matcher: cond,
		}

		for c.NextBlock() {
			switch c.Val() {
			case "message":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				n.msg = c.Val()

			case "title":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				n.title = c.Val()

			case "server":
				args := c.RemainingArgs()
				if len(args) != 2 {
					return nil, c.ArgErr()
				}
				n.srv = args[0]
				n.token = args[1]

			default:
				return nil, c.SyntaxErr("message, title or server")
			}
		}

		if n.srv == "" {
			srv, token, ok := g.findLastCreds()
			if !ok {
				return nil, c.Err("gotify: no server configured")
			}
			n.srv = srv
			n.token = token
		}

		if n.msg == "" && (!cond.EmptyCondition() || n.title != "") {
			return nil, c.Err("gotify: message must be set")
		}

		g.addNotification(n)
	}

	return g, nil
}

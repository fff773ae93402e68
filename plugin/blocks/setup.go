// Package blocks configures how a network is split into blocks and which
// of them are owned by this node or by a peer.
//
//	blocks 64 {
//	    ours 0 1
//	    claimed 2 10.0.0.2
//	}
package blocks

import (
	"net"
	"strconv"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
)

func init() {
	caddy.RegisterPlugin("blocks", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupBlocks,
	})
}

func setupBlocks(c *caddy.Controller) error {
	cfg := dhcpserver.GetConfig(c)

	for c.Next() {
		args := c.RemainingArgs()
		switch len(args) {
		case 0:
		case 1:
			size, err := strconv.Atoi(args[0])
			if err != nil || size <= 0 {
				return c.SyntaxErr("positive block size")
			}
			cfg.BlockSize = size
		default:
			return c.ArgErr()
		}

		for c.NextBlock() {
			switch c.Val() {
			case "ours":
				indexes := c.RemainingArgs()
				if len(indexes) == 0 {
					return c.ArgErr()
				}

				for _, s := range indexes {
					idx, err := parseIndex(s)
					if err != nil {
						return c.SyntaxErr("block index")
					}
					cfg.Ours = append(cfg.Ours, idx)
				}

			case "claimed":
				args := c.RemainingArgs()
				if len(args) != 2 {
					return c.ArgErr()
				}

				idx, err := parseIndex(args[0])
				if err != nil {
					return c.SyntaxErr("block index")
				}

				owner := net.ParseIP(args[1]).To4()
				if owner == nil {
					return c.SyntaxErr("IPv4 address of the owning peer")
				}

				cfg.Claimed = append(cfg.Claimed, dhcpserver.Claim{Index: idx, Owner: owner})

			default:
				return c.SyntaxErr("ours or claimed")
			}
		}
	}

	return nil
}

func parseIndex(s string) (uint32, error) {
	i, err := strconv.ParseUint(s, 10, 32)
	return uint32(i), err
}

package dhcpserver

import (
	"fmt"
	"strings"

	"github.com/nextdhcp/ddhcp/core/option"
)

func getStartupInfo(cfg []*Config) string {
	var sb strings.Builder

	for _, c := range cfg {
		ifname := c.Interface.Name
		if ifname == "" {
			ifname = "auto"
		}

		fmt.Fprintf(&sb, "\t%s on %s (%s), %d addresses per block, peers on %s\n", c.Network.String(), c.IP, ifname, c.BlockSize, c.PeerAddr)

		if len(c.Ours) > 0 {
			fmt.Fprintf(&sb, "\t\towned blocks: %v\n", c.Ours)
		}

		for _, claim := range c.Claimed {
			fmt.Fprintf(&sb, "\t\tblock %d owned by %s\n", claim.Index, claim.Owner)
		}

		for _, opt := range c.Options.Options() {
			fmt.Fprintf(&sb, "\t\t%s\n", option.ToString(opt))
		}
	}

	if sb.Len() == 0 {
		return ""
	}

	return "Serving the following networks\n" + sb.String()
}

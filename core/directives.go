// Package core includes the DHCP server type, all built-in directives and
// the lease storage drivers.
package core

import (
	// the dhcpv4 server type
	_ "github.com/nextdhcp/ddhcp/core/dhcpserver"

	// lease storage drivers
	_ "github.com/nextdhcp/ddhcp/core/lease/storage/drivers"

	// Include all built-in directives
	_ "github.com/nextdhcp/ddhcp/plugin/blocks"
	_ "github.com/nextdhcp/ddhcp/plugin/database"
	_ "github.com/nextdhcp/ddhcp/plugin/gotify"
	_ "github.com/nextdhcp/ddhcp/plugin/hook"
	_ "github.com/nextdhcp/ddhcp/plugin/ifname"
	_ "github.com/nextdhcp/ddhcp/plugin/lease"
	_ "github.com/nextdhcp/ddhcp/plugin/log"
	_ "github.com/nextdhcp/ddhcp/plugin/mqtt"
	_ "github.com/nextdhcp/ddhcp/plugin/option"
	_ "github.com/nextdhcp/ddhcp/plugin/peer"
	_ "github.com/nextdhcp/ddhcp/plugin/prometheus"
	_ "github.com/nextdhcp/ddhcp/plugin/serverid"
	_ "github.com/nextdhcp/ddhcp/plugin/sweep"
)

package dhcpserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/caddyserver/caddy/caddyfile"
	"github.com/nextdhcp/ddhcp/core/utils/iface"
)

const serverType = "dhcpv4"

func init() {
	caddy.RegisterServerType(serverType, caddy.ServerType{
		Directives: func() []string { return Directives },
		DefaultInput: func() caddy.Input {
			return caddy.CaddyfileInput{
				Filepath:       "Dhcpfile",
				Contents:       []byte{},
				ServerTypeName: serverType,
			}
		},
		NewContext: newContext,
	})
}

func newContext(i *caddy.Instance) caddy.Context {
	return &dhcpContext{
		keyToConfig: make(map[string]*Config),
	}
}

type dhcpContext struct {
	configs     []*Config
	keyToConfig map[string]*Config
}

func (c *dhcpContext) addConfig(key string, cfg *Config) {
	c.configs = append(c.configs, cfg)
	c.keyToConfig[key] = cfg
}

// InspectServerBlocks creates a Config for every server block key. Keys are
// either "<server-ip>/<prefix-len>" or the name of an interface with a single
// IPv4 network assigned
func (c *dhcpContext) InspectServerBlocks(sourceFile string, serverBlocks []caddyfile.ServerBlock) ([]caddyfile.ServerBlock, error) {
	seen := make(map[string]string)

	for si, s := range serverBlocks {
		for ki, k := range s.Keys {
			ip, ipNet, err := iface.ByNameOrCIDR(k)
			if err != nil {
				return nil, fmt.Errorf("invalid IP network address '%s' in server block %d: %w", k, si, err)
			}

			if ip.To4() == nil {
				return nil, fmt.Errorf("'%s' in server block %d is not an IPv4 network", k, si)
			}

			if other, ok := seen[ipNet.String()]; ok {
				return nil, fmt.Errorf("network %s is served by %q and %q", ipNet, other, k)
			}
			seen[ipNet.String()] = k

			cfg := newConfig(ipNet.String(), ip.To4(), *ipNet)
			if ifi, err := net.InterfaceByName(k); err == nil {
				cfg.Interface = *ifi
			}

			c.addConfig(keyForConfig(si, ki), cfg)
		}
	}

	return serverBlocks, nil
}

// MakeServers creates a Server for every configured network
func (c *dhcpContext) MakeServers() ([]caddy.Server, error) {
	var servers []caddy.Server
	for _, cfg := range c.configs {
		cfg.applyDefaultOptions()

		s, err := NewServer(cfg)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", cfg.Network.String(), err)
		}

		if cfg.Database != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := cfg.Database.Restore(ctx, s.arena.Blocks(), time.Now())
			cancel()

			if err != nil {
				return nil, fmt.Errorf("network %s: failed to restore leases: %w", cfg.Network.String(), err)
			}
		}

		servers = append(servers, s)
	}

	return servers, nil
}

package dhcpserver

import (
	"fmt"
	"net"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/engine"
	"github.com/nextdhcp/ddhcp/core/lease/storage"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/option"
	"github.com/nextdhcp/ddhcp/core/peer"
	"github.com/nextdhcp/ddhcp/plugin"
)

// Defaults used if the corresponding directive is missing
const (
	DefaultBlockSize     = 64
	DefaultSweepInterval = time.Second
)

// Claim is a block owned by a peer
type Claim struct {
	Index uint32
	Owner net.IP
}

// Config configures the node serving a network
type Config struct {
	// IP is the IP address of the interface we are listening on. It is
	// used as the server identifier
	IP net.IP

	// Network is the network split into blocks
	Network net.IPNet

	// Interface is the network interface where the network is served
	Interface net.Interface

	// BlockSize is the number of addresses per block
	BlockSize int

	// Ours holds the indexes of blocks owned by this node at start-up
	Ours []uint32

	// Claimed holds the blocks owned by peers at start-up
	Claimed []Claim

	LeaseTime      time.Duration
	OfferTimeout   time.Duration
	ServerDelta    time.Duration
	ForwardTimeout time.Duration

	// Options holds the DHCP options announced to clients
	Options *option.Store

	// Database persists the lease tables of owned blocks. May be nil
	Database *storage.Database

	// PeerAddr is the address the peer transport listens on
	PeerAddr string

	// SweepInterval is the time between two timeout sweeps
	SweepInterval time.Duration

	logger log.Logger

	// plugins is a list of middleware setup functions
	plugins []plugin.Plugin

	// chain is the beginning of the middleware chain for this network
	chain plugin.Handler
}

func newConfig(key string, ip net.IP, network net.IPNet) *Config {
	return &Config{
		IP:             ip,
		Network:        network,
		BlockSize:      DefaultBlockSize,
		LeaseTime:      engine.DefaultLeaseTime,
		OfferTimeout:   engine.DefaultOfferTimeout,
		ServerDelta:    engine.DefaultServerDelta,
		ForwardTimeout: engine.DefaultForwardTimeout,
		Options:        option.NewStore(),
		PeerAddr:       fmt.Sprintf(":%d", peer.DefaultPort),
		SweepInterval:  DefaultSweepInterval,
		logger:         log.Component("server").WithField("network", key),
	}
}

// AddPlugin adds a new plugin to the middleware chain
func (cfg *Config) AddPlugin(p plugin.Plugin) {
	cfg.plugins = append(cfg.plugins, p)
}

// Logger returns the logger of the network
func (cfg *Config) Logger() log.Logger {
	return cfg.logger
}

// EngineConfig returns the engine configuration of the network
func (cfg *Config) EngineConfig() engine.Config {
	return engine.Config{
		ServerID:       cfg.IP,
		LeaseTime:      cfg.LeaseTime,
		OfferTimeout:   cfg.OfferTimeout,
		ServerDelta:    cfg.ServerDelta,
		ForwardTimeout: cfg.ForwardTimeout,
		Options:        cfg.Options,
		Logger:         cfg.logger.WithField("component", "engine"),
	}
}

// NewArena splits the network into blocks and applies the configured
// ownership
func (cfg *Config) NewArena() (*block.Arena, error) {
	arena, err := block.NewArena(cfg.Network, cfg.BlockSize)
	if err != nil {
		return nil, err
	}

	for _, idx := range cfg.Ours {
		if err := arena.SetOurs(idx); err != nil {
			return nil, fmt.Errorf("block %d: %w", idx, err)
		}
	}

	for _, claim := range cfg.Claimed {
		b, err := arena.Block(claim.Index)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", claim.Index, err)
		}

		if b.State == block.StateOurs {
			return nil, fmt.Errorf("block %d is configured as ours and as claimed by %s", claim.Index, claim.Owner)
		}

		if err := arena.SetClaimed(claim.Index, claim.Owner); err != nil {
			return nil, err
		}
	}

	return arena, nil
}

// applyDefaultOptions adds the subnet mask and broadcast address of the
// network unless configured explicitly
func (cfg *Config) applyDefaultOptions() {
	cfg.Options.SetDefault(dhcpv4.OptionSubnetMask, dhcpv4.IPMask(cfg.Network.Mask))
	cfg.Options.SetDefault(dhcpv4.OptionBroadcastAddress, dhcpv4.IP(broadcast(cfg.Network)))
}

func broadcast(n net.IPNet) net.IP {
	ip := n.IP.To4()
	bcast := make(net.IP, len(ip))
	for i := range ip {
		bcast[i] = ip[i] | ^n.Mask[i]
	}

	return bcast
}

func keyForConfig(serverBlockIndex, serverBlockKeyIndex int) string {
	return fmt.Sprintf("%d:%d", serverBlockIndex, serverBlockKeyIndex)
}

// GetConfig gets the Config that corresponds to c
// if none exist nil is returned
func GetConfig(c *caddy.Controller) *Config {
	ctx := c.Context().(*dhcpContext)
	key := keyForConfig(c.ServerBlockIndex, c.ServerBlockKeyIndex)

	return ctx.keyToConfig[key]
}

func buildMiddlewareChain(cfg *Config, last plugin.Handler) {
	cfg.chain = plugin.Chain(last, cfg.plugins...)
}

// Package engine implements the per-lease state machine of a node. It
// answers DISCOVER, REQUEST and RELEASE messages for blocks owned by this
// node, forwards requests for blocks owned by a peer and completes them
// once the peer answered.
//
// An Engine is not safe for concurrent use. All calls must be serialized
// by the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/option"
	"github.com/nextdhcp/ddhcp/core/peer"
)

// Default timings
const (
	DefaultLeaseTime       = time.Hour
	DefaultOfferTimeout    = 12 * time.Second
	DefaultServerDelta     = 10 * time.Second
	DefaultForwardTimeout  = 12 * time.Second
	DefaultPendingCapacity = 1024
)

var (
	// ErrMalformed is returned for messages that cannot be processed at all
	ErrMalformed = errors.New("malformed message")

	// ErrReply is returned when lease state has been updated but the reply
	// could not be built or sent. The client is expected to retry
	ErrReply = errors.New("failed to deliver reply")
)

// Outcome describes how a message has been handled
type Outcome int

// Possible outcomes
const (
	// Ignored messages did not change any state and were not answered
	Ignored Outcome = iota
	Offered
	Acked
	Nacked

	// Forwarded requests are answered once the owner of the block replied
	Forwarded

	Released

	// Rejected messages failed an identity check. Nothing is sent
	Rejected

	// NeedBlocks is returned if no owned block has a free lease left
	NeedBlocks
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Offered:
		return "offered"
	case Acked:
		return "acked"
	case Nacked:
		return "nacked"
	case Forwarded:
		return "forwarded"
	case Released:
		return "released"
	case Rejected:
		return "rejected"
	case NeedBlocks:
		return "need-blocks"
	}

	return fmt.Sprintf("Outcome(%d)", int(o))
}

type (
	// BlockManager provides access to the blocks known to this node
	BlockManager interface {
		// Resolve maps an address onto its block
		Resolve(ip net.IP) block.Resolution

		// FindFreeBlock returns an owned block with at least one free
		// lease or nil
		FindFreeBlock() *block.Block

		// Allocate materializes the lease table of b
		Allocate(b *block.Block) error

		// Blocks returns all blocks
		Blocks() []*block.Block
	}

	// ClientSender delivers replies to DHCP clients
	ClientSender interface {
		SendToClient(ctx context.Context, resp *dhcpv4.DHCPv4, to net.Addr) error
	}

	// PeerSender delivers relay messages to other nodes
	PeerSender interface {
		SendToPeer(ctx context.Context, msg *peer.Message, to net.IP) error
	}

	// Hook is notified about granted and released leases. Notify must not
	// block
	Hook interface {
		Notify(ctx context.Context, event caddy.EventName, addr net.IP, hw net.HardwareAddr, expires time.Time)
	}
)

// Config configures an Engine
type Config struct {
	// ServerID is the server identifier put into OFFER and ACK messages
	ServerID net.IP

	// LeaseTime is the lease time announced to clients
	LeaseTime time.Duration

	// OfferTimeout is the time an offered lease is reserved for a client
	OfferTimeout time.Duration

	// ServerDelta is added to the lease time when calculating the expiry
	// of a lease so our records outlive the client's
	ServerDelta time.Duration

	// ForwardTimeout is the time we wait for the owner of a block to
	// answer a forwarded request
	ForwardTimeout time.Duration

	// PendingCapacity is the maximum number of forwarded requests waiting
	// for an answer
	PendingCapacity int

	// Options holds the configured DHCP options
	Options *option.Store

	// Now returns the current time. Defaults to time.Now
	Now func() time.Time

	Logger log.Logger
}

func (cfg *Config) setDefaults() {
	if cfg.LeaseTime <= 0 {
		cfg.LeaseTime = DefaultLeaseTime
	}

	if cfg.OfferTimeout <= 0 {
		cfg.OfferTimeout = DefaultOfferTimeout
	}

	if cfg.ServerDelta < 0 {
		cfg.ServerDelta = 0
	}

	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = DefaultForwardTimeout
	}

	if cfg.PendingCapacity <= 0 {
		cfg.PendingCapacity = DefaultPendingCapacity
	}

	if cfg.Options == nil {
		cfg.Options = option.NewStore()
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = log.Component("engine")
	}
}

// Engine handles DHCP messages and relay messages of a single network
type Engine struct {
	cfg     Config
	blocks  BlockManager
	client  ClientSender
	peers   PeerSender
	hook    Hook
	pending *pendingCache
	l       log.Logger
}

// New returns a new engine. hook may be nil
func New(cfg Config, blocks BlockManager, client ClientSender, peers PeerSender, hook Hook) *Engine {
	cfg.setDefaults()

	return &Engine{
		cfg:     cfg,
		blocks:  blocks,
		client:  client,
		peers:   peers,
		hook:    hook,
		pending: newPendingCache(cfg.PendingCapacity, cfg.Now),
		l:       cfg.Logger,
	}
}

// Name returns "engine". Together with ServeDHCP it allows the engine to
// terminate a middleware chain
func (e *Engine) Name() string {
	return "engine"
}

// ServeDHCP dispatches req to the handler of its message type. The
// client address replies are sent to must be attached to ctx using
// WithClient
func (e *Engine) ServeDHCP(ctx context.Context, req *dhcpv4.DHCPv4) (Outcome, error) {
	if req == nil || req.OpCode != dhcpv4.OpcodeBootRequest {
		return Ignored, ErrMalformed
	}

	if len(req.ClientHWAddr) == 0 || len(req.ClientHWAddr) > block.HWAddrLen {
		return Ignored, fmt.Errorf("%w: invalid hardware address length %d", ErrMalformed, len(req.ClientHWAddr))
	}

	switch req.MessageType() {
	case dhcpv4.MessageTypeDiscover:
		return e.Discover(ctx, req)

	case dhcpv4.MessageTypeRequest:
		return e.Request(ctx, req)

	case dhcpv4.MessageTypeRelease:
		return e.Release(ctx, req)
	}

	log.With(ctx, e.l).Debugf("ignoring %s message", req.MessageType())
	return Ignored, nil
}

func (e *Engine) now() time.Time {
	return e.cfg.Now()
}

func (e *Engine) notify(ctx context.Context, event caddy.EventName, addr net.IP, hw net.HardwareAddr, expires time.Time) {
	if e.hook == nil {
		return
	}

	e.hook.Notify(ctx, event, addr, hw, expires)
}

// findOffered searches all owned blocks for a lease offered to hw within
// the transaction xid
func (e *Engine) findOffered(hw block.HWAddr, xid dhcpv4.TransactionID) (*block.Block, int, bool) {
	for _, b := range e.blocks.Blocks() {
		if b.State != block.StateOurs || !b.Allocated() {
			continue
		}

		if off, ok := b.FindOffered(hw, xid); ok {
			return b, off, true
		}
	}

	return nil, 0, false
}

package engine

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bluele/gcache"
	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/peer"
)

type pendingKey struct {
	xid dhcpv4.TransactionID
	hw  block.HWAddr
}

// pendingForward is a client request waiting for the answer of the
// block owner
type pendingForward struct {
	Request  *dhcpv4.DHCPv4
	Client   net.Addr
	Address  net.IP
	Created  time.Time
	Deadline time.Time
}

type clockFunc func() time.Time

func (fn clockFunc) Now() time.Time {
	return fn()
}

// pendingCache holds forwarded requests keyed by transaction ID and
// client hardware address. Entries expire at their deadline and the
// least recently used entry is dropped when the cache is full
type pendingCache struct {
	cache gcache.Cache
	keys  map[pendingKey]struct{}
	now   func() time.Time
}

func newPendingCache(size int, now func() time.Time) *pendingCache {
	p := &pendingCache{
		keys: make(map[pendingKey]struct{}),
		now:  now,
	}

	p.cache = gcache.New(size).
		LRU().
		Clock(clockFunc(now)).
		EvictedFunc(func(key, _ interface{}) {
			delete(p.keys, key.(pendingKey))
		}).
		Build()

	return p
}

func (p *pendingCache) put(key pendingKey, entry *pendingForward) error {
	ttl := entry.Deadline.Sub(p.now())
	if ttl <= 0 {
		return fmt.Errorf("deadline %s already passed", entry.Deadline)
	}

	if err := p.cache.SetWithExpire(key, entry, ttl); err != nil {
		return err
	}

	p.keys[key] = struct{}{}
	return nil
}

func (p *pendingCache) get(key pendingKey) (*pendingForward, bool) {
	v, err := p.cache.GetIFPresent(key)
	if err != nil {
		return nil, false
	}

	entry, ok := v.(*pendingForward)
	return entry, ok
}

func (p *pendingCache) remove(key pendingKey) {
	p.cache.Remove(key)
	delete(p.keys, key)
}

// take returns and removes the entry stored for key
func (p *pendingCache) take(key pendingKey) (*pendingForward, bool) {
	entry, ok := p.get(key)
	if ok {
		p.remove(key)
	}

	return entry, ok
}

// reap removes all expired entries and returns how many have been removed
func (p *pendingCache) reap() int {
	removed := 0
	for key := range p.keys {
		if _, err := p.cache.GetIFPresent(key); err == gcache.KeyNotFoundError {
			delete(p.keys, key)
			removed++
		}
	}

	return removed
}

func (p *pendingCache) len() int {
	return len(p.keys)
}

// Pending returns the number of forwarded requests waiting for an answer
func (e *Engine) Pending() int {
	return e.pending.len()
}

// inFlight reports whether lease is a provisional offer of a forwarded
// request for addr that has not been answered yet
func (e *Engine) inFlight(lease *block.Lease, addr net.IP) bool {
	if lease.State != block.Offered {
		return false
	}

	entry, ok := e.pending.get(pendingKey{xid: lease.XID, hw: lease.HwAddr})
	return ok && entry.Address.Equal(addr)
}

// forward relays a request for an address of a block owned by a peer.
// A provisional offer is recorded locally so retransmissions are
// recognized and the request is cached until the owner answers or
// ForwardTimeout passed
func (e *Engine) forward(ctx context.Context, req *dhcpv4.DHCPv4, res block.Resolution) (Outcome, error) {
	l := log.With(ctx, e.l)
	b := res.Block

	if b.State != block.StateClaimed || b.Owner == nil {
		return e.nak(ctx, req, fmt.Sprintf("%s has no owner", b))
	}

	if !b.Allocated() {
		if err := e.blocks.Allocate(b); err != nil {
			l.Errorf("failed to allocate lease table of %s: %s", b, err)
			return e.nak(ctx, req, "lease table not available")
		}
	}

	hw := block.ToHWAddr(req.ClientHWAddr)

	lease := b.Lease(res.Offset)
	if lease == nil || b.Reserved(res.Offset) {
		return e.nak(ctx, req, "address not assignable")
	}

	addr := b.Addr(res.Offset)

	// the owner decides about leases of its block. Only a request of
	// another client still waiting for the owner is rejected locally
	if e.inFlight(lease, addr) && !lease.HeldBy(hw) {
		return e.nak(ctx, req, "address requested by "+lease.HwAddr.HardwareAddr(len(req.ClientHWAddr)).String())
	}

	now := e.now()
	key := pendingKey{xid: req.TransactionID, hw: hw}
	deadline := now.Add(e.cfg.ForwardTimeout)

	previous := *lease
	lease.Offer(hw, req.TransactionID, deadline)

	entry := &pendingForward{
		Request:  req,
		Client:   ClientAddr(ctx),
		Address:  addr,
		Created:  now,
		Deadline: deadline,
	}

	if existing, ok := e.pending.get(key); ok && existing.Address.Equal(addr) {
		l.Debugf("request for %s already forwarded at %s, resending", addr, existing.Created)
		entry.Created = existing.Created
	}

	if err := e.pending.put(key, entry); err != nil {
		*lease = previous
		return Ignored, fmt.Errorf("failed to cache forwarded request: %w", err)
	}

	msg := peer.NewRenewLease(req, addr)
	if err := e.peers.SendToPeer(ctx, msg, b.Owner); err != nil {
		e.pending.remove(key)
		*lease = previous
		return Ignored, fmt.Errorf("failed to forward request for %s to %s: %w", addr, b.Owner, err)
	}

	l.Infof("forwarded request for %s to %s", addr, b.Owner)
	return Forwarded, nil
}

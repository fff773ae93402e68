// Package block contains the address blocks a node may own, the lease
// records inside them and the resolver mapping addresses onto blocks.
package block

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/lease/iprange"
)

// State is the ownership state of a block
type State int

// Possible block states. Transitions between them belong to the
// ownership protocol and are only observed here
const (
	StateFree State = iota
	StateClaiming
	StateClaimed
	StateOurs
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateClaiming:
		return "claiming"
	case StateClaimed:
		return "claimed"
	case StateOurs:
		return "ours"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// ErrOutOfRange is returned when an address or block index is not part of
// the configured network
var ErrOutOfRange = errors.New("address outside of configured blocks")

// Block is a contiguous range of addresses owned by at most one node
type Block struct {
	// Index is the position of the block inside the network
	Index uint32

	// State is the ownership state as seen by this node
	State State

	// Owner is the address of the peer owning the block. Only valid
	// for StateClaimed
	Owner net.IP

	base     uint32
	size     int
	reserved map[int]struct{}
	leases   []Lease
}

// Base returns the first address of the block
func (b *Block) Base() net.IP {
	return iprange.Int2IP(b.base)
}

// Len returns the number of addresses in the block
func (b *Block) Len() int {
	return b.size
}

// Addr returns the address at offset
func (b *Block) Addr(offset int) net.IP {
	return iprange.Int2IP(b.base + uint32(offset))
}

// Allocated reports whether the lease table has been materialized
func (b *Block) Allocated() bool {
	return b.leases != nil
}

// Reserved reports whether the address at offset must never be handed out
func (b *Block) Reserved(offset int) bool {
	_, ok := b.reserved[offset]
	return ok
}

// Lease returns the lease record at offset or nil if the table is
// not allocated or offset is invalid
func (b *Block) Lease(offset int) *Lease {
	if b.leases == nil || offset < 0 || offset >= len(b.leases) {
		return nil
	}

	return &b.leases[offset]
}

// Leases returns a copy of the lease table
func (b *Block) Leases() []Lease {
	if b.leases == nil {
		return nil
	}

	return append([]Lease{}, b.leases...)
}

// Restore replaces the lease table with leases. The table is allocated
// if required and len(leases) must match the block size
func (b *Block) Restore(leases []Lease) error {
	if len(leases) != b.size {
		return fmt.Errorf("block %d: expected %d leases, got %d", b.Index, b.size, len(leases))
	}

	b.leases = append(make([]Lease, 0, b.size), leases...)
	return nil
}

func (b *Block) alloc() {
	if b.leases == nil {
		b.leases = make([]Lease, b.size)
	}
}

// FirstFree returns the lowest usable offset whose lease is free
func (b *Block) FirstFree() (int, bool) {
	for i := range b.leases {
		if b.leases[i].State == Free && !b.Reserved(i) {
			return i, true
		}
	}

	return 0, false
}

// HasFree reports whether at least one usable lease is free
func (b *Block) HasFree() bool {
	_, ok := b.FirstFree()
	return ok
}

// NumFree returns the number of usable free leases
func (b *Block) NumFree() int {
	num := 0
	for i := range b.leases {
		if b.leases[i].State == Free && !b.Reserved(i) {
			num++
		}
	}

	return num
}

// NumOffered returns the number of offered leases
func (b *Block) NumOffered() int {
	num := 0
	for i := range b.leases {
		if b.leases[i].State == Offered {
			num++
		}
	}

	return num
}

// FindOffered returns the offset of the lease offered to hw within
// transaction xid
func (b *Block) FindOffered(hw HWAddr, xid dhcpv4.TransactionID) (int, bool) {
	for i := range b.leases {
		if b.leases[i].Matches(hw, xid) {
			return i, true
		}
	}

	return 0, false
}

// Expire frees every non-free lease that expired at now and returns the
// offsets that have been reclaimed
func (b *Block) Expire(now time.Time) []int {
	var expired []int
	for i := range b.leases {
		if b.leases[i].ExpiredAt(now) {
			b.leases[i].Reset()
			expired = append(expired, i)
		}
	}

	return expired
}

// String implements fmt.Stringer
func (b *Block) String() string {
	s := fmt.Sprintf("block %d (%s, %s", b.Index, b.Range(), b.State)
	if b.State == StateClaimed && b.Owner != nil {
		s += " by " + b.Owner.String()
	}

	return s + ")"
}

// Range returns the first and last address of the block
func (b *Block) Range() *iprange.IPRange {
	return &iprange.IPRange{
		Start: b.Base(),
		End:   b.Addr(b.size - 1),
	}
}

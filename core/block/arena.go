package block

import (
	"fmt"
	"net"

	"github.com/nextdhcp/ddhcp/core/lease/iprange"
)

// Kind classifies the result of resolving an address
type Kind int

// Possible resolution kinds
const (
	OutOfRange Kind = iota
	Local
	Remote
)

func (k Kind) String() string {
	switch k {
	case OutOfRange:
		return "out-of-range"
	case Local:
		return "local"
	case Remote:
		return "remote"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Resolution is the result of Arena.Resolve. Block and Offset are only
// set if Kind is Local or Remote
type Resolution struct {
	Kind   Kind
	Block  *Block
	Offset int
}

// Arena holds all blocks of a network. Blocks are created once and are
// only ever referenced by index afterwards
type Arena struct {
	prefix    uint32
	network   net.IPNet
	blockSize int
	blocks    []*Block
}

// NewArena splits network into blocks of blockSize addresses. Trailing
// addresses that do not fill a complete block are not served
func NewArena(network net.IPNet, blockSize int) (*Arena, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("invalid block size %d", blockSize)
	}

	ones, bits := network.Mask.Size()
	if bits != 32 {
		return nil, fmt.Errorf("%s is not an IPv4 network", network.String())
	}

	prefix, ok := iprange.IP2Int(network.IP.Mask(network.Mask))
	if !ok {
		return nil, fmt.Errorf("%s is not an IPv4 network", network.String())
	}

	total := uint64(1) << uint(bits-ones)
	count := int(total / uint64(blockSize))
	if count == 0 {
		return nil, fmt.Errorf("block size %d exceeds network %s", blockSize, network.String())
	}

	broadcast := prefix + uint32(total-1)

	a := &Arena{
		prefix:    prefix,
		network:   net.IPNet{IP: iprange.Int2IP(prefix), Mask: network.Mask},
		blockSize: blockSize,
		blocks:    make([]*Block, count),
	}

	for i := range a.blocks {
		base := prefix + uint32(i*blockSize)
		b := &Block{
			Index:    uint32(i),
			State:    StateFree,
			base:     base,
			size:     blockSize,
			reserved: make(map[int]struct{}),
		}

		// the network and broadcast address are never handed out
		for _, r := range []uint32{prefix, broadcast} {
			if r >= base && r < base+uint32(blockSize) {
				b.reserved[int(r-base)] = struct{}{}
			}
		}

		a.blocks[i] = b
	}

	return a, nil
}

// Network returns the network served by the arena
func (a *Arena) Network() net.IPNet {
	return a.network
}

// BlockSize returns the number of addresses per block
func (a *Arena) BlockSize() int {
	return a.blockSize
}

// Blocks returns all blocks ordered by index
func (a *Arena) Blocks() []*Block {
	return a.blocks
}

// Block returns the block with index i
func (a *Arena) Block(i uint32) (*Block, error) {
	if int(i) >= len(a.blocks) {
		return nil, ErrOutOfRange
	}

	return a.blocks[i], nil
}

// Resolve maps ip onto its block and lease offset and classifies
// the ownership of the block
func (a *Arena) Resolve(ip net.IP) Resolution {
	addr, ok := iprange.IP2Int(ip)
	if !ok || addr < a.prefix {
		return Resolution{Kind: OutOfRange}
	}

	rel := addr - a.prefix
	index := rel / uint32(a.blockSize)
	offset := int(rel % uint32(a.blockSize))

	if int(index) >= len(a.blocks) {
		return Resolution{Kind: OutOfRange}
	}

	b := a.blocks[index]
	if b.State == StateOurs {
		return Resolution{Kind: Local, Block: b, Offset: offset}
	}

	return Resolution{Kind: Remote, Block: b, Offset: offset}
}

// SetOurs marks block i as owned by this node and materializes its
// lease table
func (a *Arena) SetOurs(i uint32) error {
	b, err := a.Block(i)
	if err != nil {
		return err
	}

	b.State = StateOurs
	b.Owner = nil
	b.alloc()

	return nil
}

// SetClaimed marks block i as owned by the peer at owner
func (a *Arena) SetClaimed(i uint32, owner net.IP) error {
	b, err := a.Block(i)
	if err != nil {
		return err
	}

	b.State = StateClaimed
	b.Owner = append(net.IP{}, owner...)

	return nil
}

// SetState updates the ownership state of block i without touching its
// owner or leases
func (a *Arena) SetState(i uint32, s State) error {
	b, err := a.Block(i)
	if err != nil {
		return err
	}

	b.State = s
	return nil
}

// FindFreeBlock returns the first owned block with at least one free
// lease or nil if there is none
func (a *Arena) FindFreeBlock() *Block {
	for _, b := range a.blocks {
		if b.State == StateOurs && b.Allocated() && b.HasFree() {
			return b
		}
	}

	return nil
}

// Allocate materializes the lease table of b
func (a *Arena) Allocate(b *Block) error {
	if b == nil || int(b.Index) >= len(a.blocks) || a.blocks[b.Index] != b {
		return ErrOutOfRange
	}

	b.alloc()
	return nil
}

// Owned returns all blocks owned by this node
func (a *Arena) Owned() []*Block {
	var owned []*Block
	for _, b := range a.blocks {
		if b.State == StateOurs {
			owned = append(owned, b)
		}
	}

	return owned
}

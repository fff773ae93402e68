package block

import (
	"net"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustArena(t *testing.T, cidr string, size int) *Arena {
	_, network, err := net.ParseCIDR(cidr)
	require.NoError(t, err)

	a, err := NewArena(*network, size)
	require.NoError(t, err)

	return a
}

func TestNewArena(t *testing.T) {
	a := mustArena(t, "10.0.0.0/24", 64)
	assert.Len(t, a.Blocks(), 4)
	assert.Equal(t, 64, a.BlockSize())

	for i, b := range a.Blocks() {
		assert.Equal(t, uint32(i), b.Index)
		assert.Equal(t, StateFree, b.State)
		assert.False(t, b.Allocated())
		assert.Equal(t, net.IP{10, 0, 0, byte(i * 64)}, b.Base())
	}

	assert.True(t, a.Blocks()[0].Reserved(0), "network address")
	assert.True(t, a.Blocks()[3].Reserved(63), "broadcast address")
	assert.False(t, a.Blocks()[1].Reserved(0))

	// trailing addresses are not served
	a = mustArena(t, "10.0.0.0/24", 254)
	assert.Len(t, a.Blocks(), 1)

	_, network, _ := net.ParseCIDR("10.0.0.0/30")
	_, err := NewArena(*network, 8)
	assert.Error(t, err)

	_, err = NewArena(*network, 0)
	assert.Error(t, err)

	_, network, _ = net.ParseCIDR("fd00::/64")
	_, err = NewArena(*network, 8)
	assert.Error(t, err)
}

func TestArena_Resolve(t *testing.T) {
	a := mustArena(t, "10.0.0.0/24", 64)
	require.NoError(t, a.SetOurs(1))
	require.NoError(t, a.SetClaimed(2, net.IP{192, 168, 0, 2}))

	cases := []struct {
		ip     net.IP
		kind   Kind
		index  uint32
		offset int
	}{
		{net.IP{10, 0, 0, 0}, Remote, 0, 0},
		{net.IP{10, 0, 0, 63}, Remote, 0, 63},
		{net.IP{10, 0, 0, 64}, Local, 1, 0},
		{net.IP{10, 0, 0, 100}, Local, 1, 36},
		{net.IP{10, 0, 0, 130}, Remote, 2, 2},
		{net.IP{10, 0, 0, 255}, Remote, 3, 63},
		{net.IP{10, 0, 1, 0}, OutOfRange, 0, 0},
		{net.IP{9, 255, 255, 255}, OutOfRange, 0, 0},
		{net.ParseIP("fd00::1"), OutOfRange, 0, 0},
		{nil, OutOfRange, 0, 0},
	}

	for _, c := range cases {
		res := a.Resolve(c.ip)
		assert.Equal(t, c.kind, res.Kind, c.ip.String())
		if c.kind == OutOfRange {
			assert.Nil(t, res.Block, c.ip.String())
			continue
		}

		require.NotNil(t, res.Block, c.ip.String())
		assert.Equal(t, c.index, res.Block.Index, c.ip.String())
		assert.Equal(t, c.offset, res.Offset, c.ip.String())
		assert.True(t, c.ip.Equal(res.Block.Addr(res.Offset)), c.ip.String())
	}

	res := a.Resolve(net.IP{10, 0, 0, 130})
	assert.Equal(t, StateClaimed, res.Block.State)
	assert.Equal(t, net.IP{192, 168, 0, 2}, res.Block.Owner)
}

func TestArena_Resolve_allAddresses(t *testing.T) {
	a := mustArena(t, "172.16.0.0/22", 100)
	require.NoError(t, a.SetOurs(3))

	for i := 0; i < 1024; i++ {
		ip := net.IP{172, 16, byte(i >> 8), byte(i)}
		res := a.Resolve(ip)

		if i >= 1000 {
			assert.Equal(t, OutOfRange, res.Kind, ip.String())
			continue
		}

		require.NotEqual(t, OutOfRange, res.Kind, ip.String())
		assert.Equal(t, i, int(res.Block.Index)*100+res.Offset, ip.String())
	}
}

func TestArena_FindFreeBlock(t *testing.T) {
	a := mustArena(t, "10.0.0.0/24", 4)
	assert.Nil(t, a.FindFreeBlock())

	require.NoError(t, a.SetOurs(0))
	require.NoError(t, a.SetOurs(1))

	b := a.FindFreeBlock()
	require.NotNil(t, b)
	assert.Equal(t, uint32(0), b.Index)

	// offset 0 of block 0 is the network address
	for i := 1; i < 4; i++ {
		b.Lease(i).Offer(ToHWAddr(net.HardwareAddr{1}), dhcpv4.TransactionID{}, time.Now())
	}

	b = a.FindFreeBlock()
	require.NotNil(t, b)
	assert.Equal(t, uint32(1), b.Index)
}

func TestArena_Allocate(t *testing.T) {
	a := mustArena(t, "10.0.0.0/24", 16)
	require.NoError(t, a.SetClaimed(3, net.IP{10, 1, 0, 1}))

	b, err := a.Block(3)
	require.NoError(t, err)
	assert.False(t, b.Allocated())
	assert.Nil(t, b.Lease(0))

	require.NoError(t, a.Allocate(b))
	assert.True(t, b.Allocated())
	assert.NotNil(t, b.Lease(0))

	assert.Equal(t, ErrOutOfRange, a.Allocate(&Block{Index: 3}))
	assert.Equal(t, ErrOutOfRange, a.Allocate(nil))

	_, err = a.Block(99)
	assert.Equal(t, ErrOutOfRange, err)
	assert.Equal(t, ErrOutOfRange, a.SetOurs(99))
}

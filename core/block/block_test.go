package block

import (
	"net"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hwAA = ToHWAddr(net.HardwareAddr{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa})
	hwBB = ToHWAddr(net.HardwareAddr{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb})
)

func TestHWAddr(t *testing.T) {
	hw := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	id := ToHWAddr(hw)

	assert.Equal(t, hw, id.HardwareAddr(6))
	assert.Len(t, id.HardwareAddr(0), HWAddrLen)
	assert.False(t, id.IsZero())
	assert.True(t, HWAddr{}.IsZero())

	long := make(net.HardwareAddr, 20)
	long[19] = 1
	assert.True(t, ToHWAddr(long).IsZero())
}

func TestLease_Transitions(t *testing.T) {
	now := time.Now()
	xid := dhcpv4.TransactionID{0, 0, 0, 1}

	var l Lease
	assert.False(t, l.ExpiredAt(now.Add(time.Hour)), "free leases never expire")

	l.Offer(hwAA, xid, now.Add(12*time.Second))
	assert.Equal(t, Offered, l.State)
	assert.True(t, l.Matches(hwAA, xid))
	assert.False(t, l.Matches(hwAA, dhcpv4.TransactionID{0, 0, 0, 2}))
	assert.False(t, l.Matches(hwBB, xid))
	assert.True(t, l.ConflictsWith(hwBB))
	assert.False(t, l.ConflictsWith(hwAA))
	assert.True(t, l.HeldBy(hwAA))

	l.Bind(hwAA, xid, now.Add(time.Hour))
	assert.Equal(t, Leased, l.State)
	assert.False(t, l.Matches(hwAA, xid), "only offered leases match a transaction")
	assert.False(t, l.ExpiredAt(now))
	assert.True(t, l.ExpiredAt(now.Add(2*time.Hour)))

	l.Reset()
	assert.Equal(t, Lease{}, l)
	assert.False(t, l.ConflictsWith(hwBB))
	assert.False(t, l.HeldBy(HWAddr{}))
}

func TestBlock_Counters(t *testing.T) {
	a := mustArena(t, "10.0.0.0/24", 8)
	require.NoError(t, a.SetOurs(0))
	b := a.Blocks()[0]

	// offset 0 is the network address
	assert.Equal(t, 7, b.NumFree())
	assert.Equal(t, 0, b.NumOffered())

	off, ok := b.FirstFree()
	require.True(t, ok)
	assert.Equal(t, 1, off)

	xid := dhcpv4.TransactionID{1, 2, 3, 4}
	b.Lease(off).Offer(hwAA, xid, time.Now())

	assert.Equal(t, 6, b.NumFree())
	assert.Equal(t, 1, b.NumOffered())

	found, ok := b.FindOffered(hwAA, xid)
	assert.True(t, ok)
	assert.Equal(t, 1, found)

	_, ok = b.FindOffered(hwBB, xid)
	assert.False(t, ok)

	off, ok = b.FirstFree()
	require.True(t, ok)
	assert.Equal(t, 2, off)
}

func TestBlock_Expire(t *testing.T) {
	a := mustArena(t, "10.0.0.0/24", 8)
	require.NoError(t, a.SetOurs(1))
	b := a.Blocks()[1]

	now := time.Now()
	b.Lease(0).Offer(hwAA, dhcpv4.TransactionID{1}, now.Add(-time.Second))
	b.Lease(1).Bind(hwBB, dhcpv4.TransactionID{2}, now.Add(time.Minute))
	b.Lease(2).Bind(hwBB, dhcpv4.TransactionID{3}, now.Add(-time.Minute))

	expired := b.Expire(now)
	assert.Equal(t, []int{0, 2}, expired)
	assert.Equal(t, Free, b.Lease(0).State)
	assert.Equal(t, Leased, b.Lease(1).State)
	assert.Equal(t, Free, b.Lease(2).State)
	assert.True(t, b.Lease(2).HwAddr.IsZero())
	assert.Equal(t, 7, b.NumFree())
}

func TestBlock_Restore(t *testing.T) {
	a := mustArena(t, "10.0.0.0/24", 4)
	b := a.Blocks()[2]

	assert.Error(t, b.Restore(make([]Lease, 3)))

	leases := make([]Lease, 4)
	leases[1].Bind(hwAA, dhcpv4.TransactionID{9}, time.Unix(100, 0))
	require.NoError(t, b.Restore(leases))
	assert.True(t, b.Allocated())
	assert.Equal(t, leases, b.Leases())

	// the table must not alias the input
	leases[1].Reset()
	assert.Equal(t, Leased, b.Lease(1).State)
}

func TestBlock_String(t *testing.T) {
	a := mustArena(t, "10.0.0.0/24", 64)
	require.NoError(t, a.SetOurs(0))
	require.NoError(t, a.SetClaimed(1, net.IP{10, 0, 1, 2}))

	assert.Equal(t, "block 0 (10.0.0.0-10.0.0.63, ours)", a.Blocks()[0].String())
	assert.Equal(t, "block 1 (10.0.0.64-10.0.0.127, claimed by 10.0.1.2)", a.Blocks()[1].String())

	r := a.Blocks()[1].Range()
	assert.Equal(t, 64, r.Len())
	assert.True(t, r.Contains(net.IP{10, 0, 0, 100}))
	assert.False(t, r.Contains(net.IP{10, 0, 0, 128}))
}

package storage_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/lease/storage"
	"github.com/nextdhcp/ddhcp/core/lease/storage/drivers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArena(t *testing.T) *block.Arena {
	_, network, err := net.ParseCIDR("10.0.0.0/24")
	require.NoError(t, err)

	a, err := block.NewArena(*network, 64)
	require.NoError(t, err)
	return a
}

func TestDatabase_syncAndRestore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := memory.New()
	db := storage.NewDatabase(store)

	a := newArena(t)
	require.NoError(t, a.SetOurs(0))
	require.NoError(t, a.SetClaimed(1, net.IP{10, 1, 0, 1}))

	b0, _ := a.Block(0)
	b1, _ := a.Block(1)
	require.NoError(t, a.Allocate(b1))

	hw := block.ToHWAddr(net.HardwareAddr{0xaa, 0, 0, 0, 0, 1})
	b0.Lease(1).Bind(hw, dhcpv4.TransactionID{1}, now.Add(time.Hour))
	b0.Lease(2).Offer(hw, dhcpv4.TransactionID{2}, now.Add(-time.Second))
	b1.Lease(3).Bind(hw, dhcpv4.TransactionID{3}, now.Add(time.Hour))

	require.NoError(t, db.Sync(ctx, storage.TakeSnapshots(a.Owned())))

	indexes, err := store.ListBlocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, indexes, "only owned blocks are stored")

	entries, err := store.Load(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	restored := newArena(t)
	require.NoError(t, restored.SetOurs(0))
	require.NoError(t, db.Restore(ctx, restored.Blocks(), now))

	rb0, _ := restored.Block(0)
	require.True(t, rb0.Allocated())
	assert.Equal(t, *b0.Lease(1), *rb0.Lease(1))
	assert.Equal(t, block.Free, rb0.Lease(2).State, "expired leases are not restored")

	rb1, _ := restored.Block(1)
	assert.False(t, rb1.Allocated())

	// losing ownership deletes the snapshot
	require.NoError(t, a.SetState(0, block.StateFree))
	require.NoError(t, db.Sync(ctx, storage.TakeSnapshots(a.Owned())))
	indexes, err = store.ListBlocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, indexes)
}

func TestTakeSnapshots(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	db := storage.NewDatabase(store)

	a := newArena(t)
	require.NoError(t, a.SetOurs(0))
	require.NoError(t, a.SetState(2, block.StateOurs))

	b0, _ := a.Block(0)
	hw := block.ToHWAddr(net.HardwareAddr{0xaa, 0, 0, 0, 0, 1})
	b0.Lease(4).Bind(hw, dhcpv4.TransactionID{4}, time.Now().Add(time.Hour))

	require.NoError(t, store.Save(ctx, 2, []storage.Entry{{Offset: 1, State: block.Leased}}))
	require.NoError(t, store.Save(ctx, 3, []storage.Entry{{Offset: 1, State: block.Leased}}))

	snaps := storage.TakeSnapshots(a.Owned())
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].Allocated)
	assert.Len(t, snaps[0].Entries, 1)
	assert.False(t, snaps[1].Allocated)

	// later changes do not leak into a taken snapshot
	b0.Lease(4).Reset()
	require.NoError(t, db.Sync(ctx, snaps))

	entries, err := store.Load(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].Offset)

	indexes, err := store.ListBlocks(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{0, 2}, indexes, "owned blocks without a lease table keep their snapshot")
}

func TestDatabase_restoreInvalidEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := memory.New()
	db := storage.NewDatabase(store)

	require.NoError(t, store.Save(ctx, 0, []storage.Entry{
		{Offset: 0, State: block.Leased, Expires: now.Add(time.Hour)},
		{Offset: 64, State: block.Leased, Expires: now.Add(time.Hour)},
		{Offset: 5, State: block.Leased, Expires: now.Add(time.Hour)},
	}))

	a := newArena(t)
	require.NoError(t, a.SetOurs(0))
	b0, _ := a.Block(0)

	n, err := db.RestoreBlock(ctx, b0, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, block.Free, b0.Lease(0).State, "network address is reserved")
	assert.Equal(t, block.Leased, b0.Lease(5).State)

	b1, _ := a.Block(1)
	_, err = db.RestoreBlock(ctx, b1, now)
	assert.True(t, storage.IsNotFound(err))
}

func TestOpen(t *testing.T) {
	_, err := storage.Open("does-not-exist", nil)
	assert.ErrorIs(t, err, storage.ErrUnknownDriver)

	s, err := storage.Open("memory", nil)
	require.NoError(t, err)
	assert.NotNil(t, s)

	assert.ErrorIs(t, storage.Register("memory", nil), storage.ErrDriverRegistered)
}

// Package tests contains a test suite every storage driver must pass
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/lease/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	// StorageFactory should create a new storage instance
	StorageFactory func(ctx context.Context) storage.LeaseStorage

	// TeardownFunc is invoked after each test case
	TeardownFunc func(storage.LeaseStorage)
)

func entry(offset int, state block.LeaseState, hw byte, xid byte, expires time.Time) storage.Entry {
	return storage.Entry{
		Offset:  offset,
		State:   state,
		HwAddr:  block.HWAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, hw},
		XID:     dhcpv4.TransactionID{0, 0, 0, xid},
		Expires: expires,
	}
}

// Run executes a test suite to ensure storage implementations match the
// requirements
func Run(t *testing.T, factory StorageFactory, teardown TeardownFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instance := factory(ctx)
	require.NotNil(t, instance)
	defer teardown(instance)

	// second precision is all drivers need to keep
	now := time.Now().Truncate(time.Second)

	block1 := []storage.Entry{
		entry(1, block.Leased, 1, 1, now.Add(time.Hour)),
		entry(7, block.Offered, 2, 9, now.Add(-time.Minute)),
	}

	count := func() int {
		indexes, err := instance.ListBlocks(ctx)
		require.NoError(t, err)
		return len(indexes)
	}

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, 0, count())

		_, err := instance.Load(ctx, 1)
		assert.True(t, storage.IsNotFound(err), "expected a not found error but got %v", err)
		assert.NoError(t, instance.Delete(ctx, 1))
	})

	t.Run("Save", func(t *testing.T) {
		require.NoError(t, instance.Save(ctx, 1, block1))
		assert.Equal(t, 1, count())

		// saving again replaces the snapshot
		require.NoError(t, instance.Save(ctx, 1, block1))
		assert.Equal(t, 1, count())

		require.NoError(t, instance.Save(ctx, 3, nil))
		assert.Equal(t, 2, count())
	})

	t.Run("Load", func(t *testing.T) {
		entries, err := instance.Load(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		for i := range block1 {
			assert.Equal(t, block1[i].Offset, entries[i].Offset)
			assert.Equal(t, block1[i].State, entries[i].State)
			assert.Equal(t, block1[i].HwAddr, entries[i].HwAddr)
			assert.Equal(t, block1[i].XID, entries[i].XID)
			assert.True(t, block1[i].Expires.Equal(entries[i].Expires), "expires of entry %d", i)
		}

		entries, err = instance.Load(ctx, 3)
		require.NoError(t, err)
		assert.Empty(t, entries)

		_, err = instance.Load(ctx, 2)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("Replace", func(t *testing.T) {
		replaced := []storage.Entry{entry(4, block.Leased, 3, 3, now)}
		require.NoError(t, instance.Save(ctx, 1, replaced))

		entries, err := instance.Load(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 4, entries[0].Offset)
	})

	t.Run("ListBlocks", func(t *testing.T) {
		indexes, err := instance.ListBlocks(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint32{1, 3}, indexes)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.NoError(t, instance.Delete(ctx, 1))
		assert.Equal(t, 1, count())

		_, err := instance.Load(ctx, 1)
		assert.True(t, storage.IsNotFound(err))

		assert.NoError(t, instance.Delete(ctx, 3))
		assert.Equal(t, 0, count())
	})
}

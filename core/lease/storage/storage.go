// Package storage persists the lease tables of blocks owned by this node so
// leases survive restarts of the service.
package storage

import (
	"context"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
)

// Entry is a single non-free lease of a block
type Entry struct {
	Offset  int
	State   block.LeaseState
	HwAddr  block.HWAddr
	XID     dhcpv4.TransactionID
	Expires time.Time
}

// LeaseStorage stores snapshots of lease tables keyed by block index.
// Implementations don't interpret the entries, they only need to return
// exactly what has been saved for a block
type LeaseStorage interface {
	// Save replaces the snapshot of block index with entries
	Save(ctx context.Context, index uint32, entries []Entry) error

	// Load returns the snapshot of block index. If nothing has been
	// stored for index an *ErrBlockNotFound is returned
	Load(ctx context.Context, index uint32) ([]Entry, error)

	// Delete removes the snapshot of block index. Deleting a block
	// that has not been stored is not an error
	Delete(ctx context.Context, index uint32) error

	// ListBlocks returns the indexes of all stored blocks
	ListBlocks(ctx context.Context) ([]uint32, error)
}

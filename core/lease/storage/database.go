package storage

import (
	"context"
	"errors"
	"time"

	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/log"
)

// Database saves and restores the lease tables of blocks using a
// LeaseStorage
type Database struct {
	store LeaseStorage
	l     log.Logger
}

// NewDatabase creates a new database that uses store for persistence
func NewDatabase(store LeaseStorage) *Database {
	return &Database{
		store: store,
		l:     log.Component("storage"),
	}
}

// Storage returns the underlying LeaseStorage
func (db *Database) Storage() LeaseStorage {
	return db.store
}

// Snapshot returns all non-free leases of b
func Snapshot(b *block.Block) []Entry {
	var entries []Entry
	for i, l := range b.Leases() {
		if l.State == block.Free {
			continue
		}

		entries = append(entries, Entry{
			Offset:  i,
			State:   l.State,
			HwAddr:  l.HwAddr,
			XID:     l.XID,
			Expires: l.Expires,
		})
	}

	return entries
}

// BlockSnapshot is the lease table of an owned block captured at one
// point in time
type BlockSnapshot struct {
	Index   uint32
	Entries []Entry

	// Allocated is false if the block had no lease table yet. Stored
	// snapshots of such blocks are kept
	Allocated bool
}

// TakeSnapshots captures the lease tables of owned. It does not touch the
// store so callers may hold the lock that guards the blocks
func TakeSnapshots(owned []*block.Block) []BlockSnapshot {
	snaps := make([]BlockSnapshot, 0, len(owned))
	for _, b := range owned {
		snap := BlockSnapshot{Index: b.Index, Allocated: b.Allocated()}
		if snap.Allocated {
			snap.Entries = Snapshot(b)
		}

		snaps = append(snaps, snap)
	}

	return snaps
}

// RestoreBlock loads the snapshot of b and replaces its lease table.
// Entries that expired at now, point to reserved addresses or are out
// of the block are dropped. It returns the number of restored leases
func (db *Database) RestoreBlock(ctx context.Context, b *block.Block, now time.Time) (int, error) {
	entries, err := db.store.Load(ctx, b.Index)
	if err != nil {
		return 0, err
	}

	leases := make([]block.Lease, b.Len())
	restored := 0
	for _, e := range entries {
		if e.Offset < 0 || e.Offset >= b.Len() || b.Reserved(e.Offset) {
			db.l.Warnf("%s: dropping lease with invalid offset %d", b, e.Offset)
			continue
		}

		if e.State == block.Free || now.After(e.Expires) {
			continue
		}

		leases[e.Offset] = block.Lease{
			State:   e.State,
			HwAddr:  e.HwAddr,
			XID:     e.XID,
			Expires: e.Expires,
		}
		restored++
	}

	if err := b.Restore(leases); err != nil {
		return 0, err
	}

	return restored, nil
}

// Restore restores every owned block that has a snapshot stored
func (db *Database) Restore(ctx context.Context, blocks []*block.Block, now time.Time) error {
	for _, b := range blocks {
		if b.State != block.StateOurs {
			continue
		}

		n, err := db.RestoreBlock(ctx, b, now)
		if err != nil {
			if IsNotFound(err) {
				continue
			}

			return err
		}

		db.l.Infof("restored %d leases of %s", n, b)
	}

	return nil
}

// Sync stores the snapshots of owned blocks and deletes stored snapshots
// of all other blocks
func (db *Database) Sync(ctx context.Context, owned []BlockSnapshot) error {
	indexes, err := db.store.ListBlocks(ctx)
	if err != nil {
		return err
	}

	keep := make(map[uint32]struct{}, len(owned))
	var errs []error
	for _, snap := range owned {
		keep[snap.Index] = struct{}{}
		if !snap.Allocated {
			continue
		}

		if err := db.store.Save(ctx, snap.Index, snap.Entries); err != nil {
			db.l.Errorf("failed to save block %d: %s", snap.Index, err)
			errs = append(errs, err)
		}
	}

	for _, idx := range indexes {
		if _, ok := keep[idx]; ok {
			continue
		}

		if err := db.store.Delete(ctx, idx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

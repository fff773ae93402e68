package memory

import (
	"context"

	"github.com/nextdhcp/ddhcp/core/lease/storage"
	"github.com/ppacher/webthings-mqtt-gateway/pkg/mutex"
)

// Storage implements the storage.LeaseStorage interface but
// does not provide any persistence at all as every snapshot
// is only kept in memory
type Storage struct {
	l      *mutex.Mutex // context.Context aware mutex to protect all fields below
	blocks map[uint32][]storage.Entry
}

// New returns a new memory storage
func New() *Storage {
	return &Storage{
		l:      mutex.New(),
		blocks: make(map[uint32][]storage.Entry),
	}
}

// Save implements storage.LeaseStorage
func (s *Storage) Save(ctx context.Context, index uint32, entries []storage.Entry) error {
	if !s.l.TryLock(ctx) {
		return ctx.Err()
	}
	defer s.l.Unlock()

	s.blocks[index] = append(make([]storage.Entry, 0, len(entries)), entries...)
	return nil
}

// Load implements storage.LeaseStorage
func (s *Storage) Load(ctx context.Context, index uint32) ([]storage.Entry, error) {
	if !s.l.TryLock(ctx) {
		return nil, ctx.Err()
	}
	defer s.l.Unlock()

	entries, ok := s.blocks[index]
	if !ok {
		return nil, &storage.ErrBlockNotFound{Index: index}
	}

	return append([]storage.Entry{}, entries...), nil
}

// Delete implements storage.LeaseStorage
func (s *Storage) Delete(ctx context.Context, index uint32) error {
	if !s.l.TryLock(ctx) {
		return ctx.Err()
	}
	defer s.l.Unlock()

	delete(s.blocks, index)
	return nil
}

// ListBlocks implements storage.LeaseStorage
func (s *Storage) ListBlocks(ctx context.Context) ([]uint32, error) {
	if !s.l.TryLock(ctx) {
		return nil, ctx.Err()
	}
	defer s.l.Unlock()

	indexes := make([]uint32, 0, len(s.blocks))
	for idx := range s.blocks {
		indexes = append(indexes, idx)
	}

	return indexes, nil
}

// compile time check
var _ storage.LeaseStorage = &Storage{}

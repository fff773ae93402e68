package bolt

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/lease/storage"
	"go.etcd.io/bbolt"
)

var blocksBucketKey = []byte("blocks")

// SchemaVersion is the current version of the bolt db
const SchemaVersion = "1"

type (
	// Storage is a storage.LeaseStorage implementation that persists
	// lease tables in a bbolt database
	Storage struct {
		db   *bbolt.DB
		path string
	}

	entry struct {
		Offset  int    `json:"offset"`
		State   string `json:"state"`
		HwAddr  string `json:"hwaddr"`
		XID     uint32 `json:"xid"`
		Expires int64  `json:"expires"`
	}
)

func blockKey(index uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, index)
	return key
}

func toEntry(e storage.Entry) entry {
	return entry{
		Offset:  e.Offset,
		State:   e.State.String(),
		HwAddr:  hex.EncodeToString(e.HwAddr[:]),
		XID:     binary.BigEndian.Uint32(e.XID[:]),
		Expires: e.Expires.Unix(),
	}
}

func (e entry) toStorage() (storage.Entry, error) {
	res := storage.Entry{
		Offset:  e.Offset,
		Expires: time.Unix(e.Expires, 0),
	}

	switch e.State {
	case block.Offered.String():
		res.State = block.Offered
	case block.Leased.String():
		res.State = block.Leased
	case block.Free.String():
		res.State = block.Free
	default:
		return res, fmt.Errorf("invalid lease state %q", e.State)
	}

	hw, err := hex.DecodeString(e.HwAddr)
	if err != nil {
		return res, err
	}
	if len(hw) > block.HWAddrLen {
		return res, fmt.Errorf("invalid hardware address %q", e.HwAddr)
	}
	copy(res.HwAddr[:], hw)
	binary.BigEndian.PutUint32(res.XID[:], e.XID)

	return res, nil
}

// Save implements storage.LeaseStorage
func (s *Storage) Save(ctx context.Context, index uint32, entries []storage.Entry) error {
	blob := make([]entry, 0, len(entries))
	for _, e := range entries {
		blob = append(blob, toEntry(e))
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(blocksBucketKey)
		if err != nil {
			return err
		}

		return bucket.Put(blockKey(index), data)
	})
}

// Load implements storage.LeaseStorage
func (s *Storage) Load(ctx context.Context, index uint32) ([]storage.Entry, error) {
	var blob []entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(blocksBucketKey)
		if bucket == nil {
			// not found because the bucket hasn't even been created yet
			return &storage.ErrBlockNotFound{Index: index}
		}

		data := bucket.Get(blockKey(index))
		if data == nil {
			return &storage.ErrBlockNotFound{Index: index}
		}

		return json.Unmarshal(data, &blob)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]storage.Entry, 0, len(blob))
	for _, e := range blob {
		res, err := e.toStorage()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", index, err)
		}
		entries = append(entries, res)
	}

	return entries, nil
}

// Delete implements storage.LeaseStorage
func (s *Storage) Delete(ctx context.Context, index uint32) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(blocksBucketKey)
		if bucket == nil {
			return nil
		}

		return bucket.Delete(blockKey(index))
	})
}

// ListBlocks implements storage.LeaseStorage
func (s *Storage) ListBlocks(ctx context.Context) ([]uint32, error) {
	var indexes []uint32
	return indexes, s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(blocksBucketKey)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		key, _ := cursor.First()
		for key != nil {
			indexes = append(indexes, binary.BigEndian.Uint32(key))
			key, _ = cursor.Next()
		}

		return nil
	})
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// compile time check
var _ storage.LeaseStorage = &Storage{}

package bolt

import (
	"fmt"

	"github.com/nextdhcp/ddhcp/core/lease/storage"
	"go.etcd.io/bbolt"
)

func init() {
	storage.MustRegister("bolt", storageFactory)
}

func storageFactory(arguments map[string][]string) (storage.LeaseStorage, error) {
	file := ""

	if args, ok := arguments["__args__"]; ok {
		if len(args) > 1 {
			return nil, fmt.Errorf("only one database file can be configured")
		}
		file = args[0]
	} else if f, ok := arguments["file"]; ok {
		if len(f) != 1 {
			return nil, fmt.Errorf("only one database file can be configured")
		}

		file = f[0]
	} else {
		return nil, fmt.Errorf("no database file configured")
	}

	return Open(file)
}

// Open opens or creates the bolt database at path
func Open(path string) (*Storage, error) {
	db, err := bbolt.Open(path, 0o660, nil)
	if err != nil {
		return nil, err
	}

	if err := migrateDatabase(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{db: db, path: path}, nil
}

package bolt

import (
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	schemaVersionBucket = []byte("schema-version")
	schemaVersionKey    = []byte("ddhcp-schema-version")
)

type migrationFunc func(*bbolt.Tx) error

var migrations = map[string]migrationFunc{
	"0": initSchema,
}

// initSchema creates the buckets of an empty database
func initSchema(tx *bbolt.Tx) error {
	if _, err := tx.CreateBucketIfNotExists(blocksBucketKey); err != nil {
		return err
	}

	return tx.Bucket(schemaVersionBucket).Put(schemaVersionKey, []byte("1"))
}

func migrateDatabase(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		versionBucket, err := tx.CreateBucketIfNotExists(schemaVersionBucket)
		if err != nil {
			return err
		}

		version := string(versionBucket.Get(schemaVersionKey))
		if version == "" {
			version = "0"
		}

		for version != SchemaVersion {
			migrator, ok := migrations[version]
			if !ok {
				return fmt.Errorf("cannot migrate from %q", version)
			}

			if err := migrator(tx); err != nil {
				return err
			}

			version = string(versionBucket.Get(schemaVersionKey))
		}

		return nil
	})
}

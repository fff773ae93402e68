package memory

import "github.com/nextdhcp/ddhcp/core/lease/storage"

func init() {
	storage.MustRegister("memory", func(_ map[string][]string) (storage.LeaseStorage, error) {
		return New(), nil
	})
}

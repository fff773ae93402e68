package database

import (
	"testing"

	"github.com/nextdhcp/ddhcp/core/dhcpserver"
	"github.com/nextdhcp/ddhcp/core/lease/storage"
	"github.com/nextdhcp/ddhcp/core/lease/storage/drivers/memory"
	"github.com/nextdhcp/ddhcp/plugin/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseSetup(t *testing.T) {
	driverName := "test-driver"

	var ret storage.LeaseStorage = memory.New()
	var argsOpts map[string][]string

	require.NoError(t, storage.Register(driverName, func(opts map[string][]string) (storage.LeaseStorage, error) {
		argsOpts = opts
		return ret, nil
	}))

	t.Run("no args", func(t *testing.T) {
		c := test.CreateTestBed(t, "database test-driver")
		assert.NoError(t, parseDatabaseDirective(c))

		db := dhcpserver.GetConfig(c).Database
		require.NotNil(t, db)
		assert.Equal(t, ret, db.Storage())
		assert.Empty(t, argsOpts)
	})

	t.Run("args", func(t *testing.T) {
		c := test.CreateTestBed(t, `database test-driver some arguments {
			barg1 1
			barg2 2 3
		}`)
		assert.NoError(t, parseDatabaseDirective(c))
		assert.NotNil(t, dhcpserver.GetConfig(c).Database)

		expected := map[string][]string{
			"__args__": {"some", "arguments"},
			"barg1":    {"1"},
			"barg2":    {"2", "3"},
		}
		assert.Equal(t, expected, argsOpts)
	})

	t.Run("builtin drivers", func(t *testing.T) {
		c := test.CreateTestBed(t, "database memory")
		assert.NoError(t, parseDatabaseDirective(c))
		assert.NotNil(t, dhcpserver.GetConfig(c).Database)
	})

	t.Run("invalid", func(t *testing.T) {
		c := test.CreateTestBed(t, "database")
		assert.Error(t, parseDatabaseDirective(c))

		c = test.CreateTestBed(t, "")
		assert.Error(t, parseDatabaseDirective(c))

		c = test.CreateTestBed(t, "database invalid-driver")
		assert.Error(t, parseDatabaseDirective(c))

		c = test.CreateTestBed(t, `database test-driver {
			block arg
		} something else`)
		assert.Error(t, parseDatabaseDirective(c))
	})
}

package ifname

import (
	"net"
	"testing"

	"github.com/nextdhcp/ddhcp/core/dhcpserver"
	"github.com/nextdhcp/ddhcp/plugin/test"
	"github.com/stretchr/testify/assert"
)

func TestInterfacePlugin(t *testing.T) {
	t.Run("valid interface", func(t *testing.T) {
		c := test.CreateTestBed(t, "interface lo")

		cfg := dhcpserver.GetConfig(c)
		cfg.Interface = net.Interface{}

		assert.NoError(t, setupInterface(c))
		assert.Equal(t, "lo", cfg.Interface.Name)
	})

	invalid := map[string]string{
		"unknown interface": "interface someInterfaceThatDoesNotExist",
		"no interface name": "interface",
		"too many names":    "interface lo eth0",
	}

	for name, in := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, setupInterface(test.CreateTestBed(t, in)))
		})
	}
}

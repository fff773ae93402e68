package iface

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByIP(t *testing.T) {
	ifi, err := ByIP(net.IP{127, 0, 0, 1})
	assert.NoError(t, err)
	assert.Equal(t, "lo", ifi.Name)

	ifi, err = ByIP(net.IP{127, 0, 1, 1})
	assert.Error(t, err)
	assert.Nil(t, ifi)
}

func TestByNameOrCIDR(t *testing.T) {
	ip, inet, err := ByNameOrCIDR("lo")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip.String())
	assert.Equal(t, "127.0.0.0/8", inet.String())

	ip, inet, err = ByNameOrCIDR("10.0.0.1/24")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", ip.String())
	assert.Equal(t, "10.0.0.0/24", inet.String())

	_, _, err = ByNameOrCIDR("notAnIpOrInterface")
	require.Error(t, err)
}

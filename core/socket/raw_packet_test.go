package socket

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clientMAC = net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	serverMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
)

func TestPreparePacket(t *testing.T) {
	src := RawAddr{MAC: serverMAC, IP: net.IP{10, 0, 0, 1}}
	dst := RawAddr{MAC: clientMAC, IP: net.IP{10, 0, 0, 9}}

	frame, err := PreparePacket(src, dst, []byte("payload"))
	require.NoError(t, err)

	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, packet.ErrorLayer())

	eth := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, clientMAC, eth.DstMAC)
	assert.Equal(t, serverMAC, eth.SrcMAC)

	ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, "10.0.0.1", ip.SrcIP.String())
	assert.Equal(t, "10.0.0.9", ip.DstIP.String())

	udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	assert.Equal(t, layers.UDPPort(67), udp.SrcPort)
	assert.Equal(t, layers.UDPPort(68), udp.DstPort)
	assert.Equal(t, []byte("payload"), udp.Payload)
}

func TestExtractUDPPayload(t *testing.T) {
	src := RawAddr{MAC: clientMAC, IP: net.IPv4zero, Port: 68}
	dst := RawAddr{MAC: layers.EthernetBroadcast, IP: net.IPv4bcast, Port: 67}

	frame, err := PreparePacket(src, dst, []byte("discover"))
	require.NoError(t, err)

	payload, addr, ok := extractUDPPayload(67, frame)
	require.True(t, ok)
	assert.Equal(t, []byte("discover"), payload)
	assert.Equal(t, clientMAC, addr.MAC)
	assert.True(t, addr.IP.Equal(net.IPv4zero))
	assert.Equal(t, uint16(68), addr.Port)
	assert.True(t, addr.Local.IP.Equal(net.IPv4bcast))
	assert.Equal(t, uint16(67), addr.Local.Port)

	// the frame may be reused by the caller
	frame[len(frame)-1] = 'x'
	assert.Equal(t, []byte("discover"), payload)

	_, _, ok = extractUDPPayload(1234, frame)
	assert.False(t, ok, "wrong destination port")

	_, _, ok = extractUDPPayload(67, frame[:20])
	assert.False(t, ok, "truncated frame")

	arp, err := serialize(&layers.Ethernet{
		SrcMAC:       clientMAC,
		DstMAC:       layers.EthernetBroadcast,
		EthernetType: layers.EthernetTypeARP,
	}, &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   clientMAC,
		SourceProtAddress: []byte{10, 0, 0, 9},
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    []byte{10, 0, 0, 1},
	})
	require.NoError(t, err)

	_, _, ok = extractUDPPayload(67, arp)
	assert.False(t, ok, "not an IPv4 frame")
}

func TestAddr(t *testing.T) {
	a := &Addr{RawAddr: RawAddr{MAC: clientMAC, IP: net.IP{10, 0, 0, 9}, Port: 68}}
	assert.Equal(t, "udp(raw)", a.Network())
	assert.Equal(t, "<aa:bb:cc:dd:ee:ff>10.0.0.9:68", a.String())
}

func serialize(l ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, l...); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

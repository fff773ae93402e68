package socket

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/insomniacslk/dhcp/dhcpv4"
)

// PreparePacket builds an ethernet frame carrying payload in a UDP datagram
// from src to dst. Zero ports default to the DHCP server and client ports
func PreparePacket(src, dst RawAddr, payload []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()

	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}

	srcPort, dstPort := src.Port, dst.Port
	if srcPort == 0 {
		srcPort = dhcpv4.ServerPort
	}
	if dstPort == 0 {
		dstPort = dhcpv4.ClientPort
	}

	ethernet := &layers.Ethernet{
		DstMAC:       dst.MAC,
		SrcMAC:       src.MAC,
		EthernetType: layers.EthernetTypeIPv4,
	}

	ip := &layers.IPv4{
		Version:  4,
		TTL:      255,
		SrcIP:    src.IP.To4(),
		DstIP:    dst.IP.To4(),
		Protocol: layers.IPProtocolUDP,
		Flags:    layers.IPv4DontFragment,
	}

	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}

	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	err := gopacket.SerializeLayers(buf, opts,
		ethernet,
		ip,
		udp,
		gopacket.Payload(payload))

	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// extractUDPPayload decodes an ethernet frame and returns the UDP payload
// if the frame carries an IPv4 UDP datagram for port. The returned slices
// do not reference frame
func extractUDPPayload(port int, frame []byte) ([]byte, *Addr, bool) {
	var (
		eth     layers.Ethernet
		ip4     layers.IPv4
		udp     layers.UDP
		payload gopacket.Payload
	)

	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &eth, &ip4, &udp, &payload)
	parser.IgnoreUnsupported = true

	decoded := make([]gopacket.LayerType, 0, 4)
	if err := parser.DecodeLayers(frame, &decoded); err != nil {
		return nil, nil, false
	}

	hasUDP := false
	for _, typ := range decoded {
		if typ == layers.LayerTypeUDP {
			hasUDP = true
		}
	}

	if !hasUDP || int(udp.DstPort) != port {
		return nil, nil, false
	}

	addr := &Addr{
		RawAddr: RawAddr{
			MAC:  append(net.HardwareAddr{}, eth.SrcMAC...),
			IP:   append(net.IP{}, ip4.SrcIP...),
			Port: uint16(udp.SrcPort),
		},
		Local: RawAddr{
			MAC:  append(net.HardwareAddr{}, eth.DstMAC...),
			IP:   append(net.IP{}, ip4.DstIP...),
			Port: uint16(udp.DstPort),
		},
	}

	return append([]byte{}, udp.Payload...), addr, true
}

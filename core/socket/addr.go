package socket

import (
	"fmt"
	"net"
)

// RawAddr is one side of a link-layer addressed UDP datagram
type RawAddr struct {
	MAC  net.HardwareAddr
	IP   net.IP
	Port uint16
}

// Addr is the address of a DHCP client received on the AF_PACKET socket.
// Replies to an Addr are sent as directed unicasts to MAC without an ARP
// lookup and without taking routing into account. Local holds the
// destination the client addressed.
type Addr struct {
	RawAddr
	Local RawAddr
}

// Network returns "udp(raw)" and implements net.Addr
func (a *Addr) Network() string {
	return "udp(raw)"
}

// String returns a string representation of the peer's address
func (a *Addr) String() string {
	return fmt.Sprintf("<%s>%s:%d", a.MAC.String(), a.IP.String(), a.Port)
}

// Compile time check
var _ net.Addr = &Addr{}

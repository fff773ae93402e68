// Package socket provides the client facing DHCP socket. Requests are read
// from an AF_PACKET socket so broadcasts of unconfigured clients are seen,
// replies are either sent as routed UDP datagrams or as directed unicasts.
package socket

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/mdlayher/raw"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/utils/iface"
)

// etherTypeIPv4 is the ethernet type the AF_PACKET socket is bound to
const etherTypeIPv4 = 0x800

var (
	rawListenPacket = func(ifi *net.Interface) (net.PacketConn, error) {
		return raw.ListenPacket(ifi, etherTypeIPv4, nil)
	}

	udpListenPacket = func(ip net.IP, port int) (net.PacketConn, error) {
		return net.ListenUDP("udp4", &net.UDPAddr{
			IP:   ip,
			Port: port,
		})
	}
)

// ListenDHCP starts listening for DHCP requests on the given IP and interface.
// It opens a UDP and a AF_PACKET socket for communication. If ifi is nil the
// interface that has ip assigned is used
func ListenDHCP(l log.Logger, ip net.IP, ifi *net.Interface) (*DHCPConn, error) {
	if ifi == nil || ifi.Name == "" {
		var err error
		ifi, err = iface.ByIP(ip)
		if err != nil {
			return nil, err
		}
	}

	udp, err := udpListenPacket(ip, dhcpv4.ServerPort)
	if err != nil {
		return nil, err
	}

	r, err := rawListenPacket(ifi)
	if err != nil {
		udp.Close()
		return nil, err
	}

	return NewDHCPConn(l, ip, ifi, udp, r), nil
}

// NewDHCPConn wraps existing UDP and AF_PACKET connections
func NewDHCPConn(l log.Logger, ip net.IP, ifi *net.Interface, udp, r net.PacketConn) *DHCPConn {
	p := &DHCPConn{
		udp:   udp,
		raw:   r,
		iface: ifi,
		ip:    ip,
		l:     l,
		buf:   make([]byte, 4096),
	}

	p.wg.Add(1)
	go p.discardUDP()

	return p
}

// DHCPConn implements net.PacketConn but utilizes a standard UDP and
// and AF_PACKET socket
type DHCPConn struct {
	udp   net.PacketConn // used for routable unicasts
	raw   net.PacketConn // used for directed (w/o ARP) unicasts
	iface *net.Interface // the interface the raw PacketConn is bound to
	ip    net.IP         // the listening IP for the udp PacketConn
	wg    sync.WaitGroup
	l     log.Logger

	readMu sync.Mutex
	buf    []byte
}

// Interface returns the network interface the AF_PACKET socket is bound to
func (p *DHCPConn) Interface() *net.Interface {
	return p.iface
}

// Close will close both the UDP and the AF_PACKET socket and
// will return the first error encountered
func (p *DHCPConn) Close() error {
	err := errors.Join(p.udp.Close(), p.raw.Close())

	// wait for discardUDP to finish
	p.wg.Wait()

	return err
}

// LocalAddr implements the PacketConn interface and returns
// the local address of the UDP socket
func (p *DHCPConn) LocalAddr() net.Addr {
	return p.udp.LocalAddr()
}

// ReadFrom reads the next DHCP request from the AF_PACKET socket. Frames
// that do not carry a datagram for the DHCP server port are skipped. The
// returned address is always a *Addr. It implements the PacketConn interface
func (p *DHCPConn) ReadFrom(b []byte) (int, net.Addr, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	for {
		n, _, err := p.raw.ReadFrom(p.buf)

		if n > 0 {
			payload, addr, ok := extractUDPPayload(dhcpv4.ServerPort, p.buf[:n])
			if ok {
				if len(b) < len(payload) {
					return copy(b, payload), addr, io.ErrShortBuffer
				}

				return copy(b, payload), addr, err
			}
		}

		if err != nil {
			return 0, nil, err
		}
	}
}

// WriteTo sends a packet to the given addr. If addr is a *Addr the AF_PACKET
// socket will be chosen. Otherwise, for e.g. net.UDPAddr, the underlying UDP
// packet conn will be used.
// It implements the PacketConn interface
func (p *DHCPConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	r, ok := addr.(*Addr)
	if !ok {
		p.l.Debugf("sending (routed) UDP response %s -> %s", p.udp.LocalAddr(), addr)
		return p.udp.WriteTo(b, addr)
	}

	src := RawAddr{
		MAC:  p.iface.HardwareAddr,
		IP:   p.ip,
		Port: r.Local.Port,
	}

	if r.Local.MAC != nil {
		src.MAC = r.Local.MAC
	}

	if r.Local.IP != nil {
		src.IP = r.Local.IP
	}

	p.l.Debugf("sending directed (raw) unicast %s (%s) -> %s (%s)", src.IP, src.MAC, r.IP, r.MAC)

	frame, err := PreparePacket(src, r.RawAddr, b)
	if err != nil {
		return 0, err
	}

	if _, err := p.raw.WriteTo(frame, &raw.Addr{HardwareAddr: r.MAC}); err != nil {
		return 0, err
	}

	return len(b), nil
}

// SetDeadline implements the PacketConn interface
func (p *DHCPConn) SetDeadline(t time.Time) error {
	return errors.Join(p.SetReadDeadline(t), p.SetWriteDeadline(t))
}

// SetReadDeadline implements the PacketConn interface
func (p *DHCPConn) SetReadDeadline(t time.Time) error {
	return p.raw.SetReadDeadline(t)
}

// SetWriteDeadline implements the PacketConn interface
func (p *DHCPConn) SetWriteDeadline(t time.Time) error {
	return errors.Join(p.raw.SetWriteDeadline(t), p.udp.SetWriteDeadline(t))
}

// discardUDP drains the UDP socket. Requests are read from the AF_PACKET
// socket only
func (p *DHCPConn) discardUDP() {
	defer p.wg.Done()
	buf := make([]byte, 1024)

	for {
		_, _, err := p.udp.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return
		}
	}
}

var _ net.PacketConn = &DHCPConn{}

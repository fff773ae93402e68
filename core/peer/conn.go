package peer

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/nextdhcp/ddhcp/core/log"
)

// DefaultPort is the UDP port used for peer messages
const DefaultPort = 1234

// Handler is called for every valid message received from a peer
type Handler func(ctx context.Context, from net.IP, msg *Message)

// Conn sends and receives peer messages over UDP. All nodes are expected
// to listen on the same port
type Conn struct {
	pc   net.PacketConn
	port int
	l    log.Logger

	wg sync.WaitGroup
}

// Listen opens a UDP socket for peer messages on addr (host:port). If the
// port is omitted DefaultPort is used
func Listen(addr string, l log.Logger) (*Conn, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = strconv.Itoa(DefaultPort)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	pc, err := net.ListenPacket("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	// port 0 selects a random port
	if port == 0 {
		if udp, ok := pc.LocalAddr().(*net.UDPAddr); ok {
			port = udp.Port
		}
	}

	return NewConn(pc, port, l), nil
}

// NewConn wraps pc. Messages passed to Send are delivered to port on the
// destination peer
func NewConn(pc net.PacketConn, port int, l log.Logger) *Conn {
	return &Conn{
		pc:   pc,
		port: port,
		l:    l,
	}
}

// LocalAddr returns the local address of the peer socket
func (c *Conn) LocalAddr() net.Addr {
	return c.pc.LocalAddr()
}

// SendToPeer encodes msg and sends it to the peer at to
func (c *Conn) SendToPeer(ctx context.Context, msg *Message, to net.IP) error {
	return c.WriteMessage(ctx, msg, &net.UDPAddr{IP: to, Port: c.port})
}

// WriteMessage encodes msg and sends it to addr
func (c *Conn) WriteMessage(ctx context.Context, msg *Message, addr net.Addr) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.pc.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}

	c.l.Debugf("[peer] sending %s to %s", msg, addr)

	_, err := c.pc.WriteTo(msg.ToBytes(), addr)
	return err
}

// Serve reads peer messages and dispatches them to h until the connection
// is closed. Datagrams that are not valid peer messages are logged and
// dropped
func (c *Conn) Serve(ctx context.Context, h Handler) error {
	c.wg.Add(1)
	defer c.wg.Done()

	buf := make([]byte, 1024)
	for {
		n, addr, err := c.pc.ReadFrom(buf)

		if n > 0 {
			msg, decodeErr := FromBytes(buf[:n])
			if decodeErr != nil {
				c.l.Warnf("[peer] dropping datagram from %s: %s", addr, decodeErr)
			} else {
				h(ctx, addrIP(addr), msg)
			}
		}

		if err != nil {
			if opErr, ok := err.(*net.OpError); ok {
				if opErr.Timeout() {
					continue
				}
			}

			return err
		}
	}
}

// Close closes the socket and waits for Serve to return
func (c *Conn) Close() error {
	err := c.pc.Close()
	c.wg.Wait()
	return err
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case nil:
		return nil
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil
	}

	return net.ParseIP(host)
}

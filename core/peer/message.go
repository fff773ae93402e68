// Package peer implements the messages exchanged between nodes when a
// request has to be answered by the owner of a block.
package peer

import (
	"errors"
	"fmt"
	"net"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/u-root/uio/uio"
)

// Type is the type of a peer message
type Type uint8

// Peer message types
const (
	// TypeRenewLease asks the owner of a block to grant or renew a lease.
	// LeaseSeconds is always zero
	TypeRenewLease Type = iota + 1

	// TypeLeaseAck answers a TypeRenewLease with the granted lease seconds
	TypeLeaseAck

	// TypeLeaseNak rejects a TypeRenewLease
	TypeLeaseNak

	// TypeRelease asks the owner of a block to free a lease
	TypeRelease
)

func (t Type) String() string {
	switch t {
	case TypeRenewLease:
		return "RENEWLEASE"
	case TypeLeaseAck:
		return "LEASEACK"
	case TypeLeaseNak:
		return "LEASENAK"
	case TypeRelease:
		return "RELEASE"
	}

	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Version is the version of the wire format
const Version = 1

// MessageLen is the length of an encoded message
const MessageLen = 4 + 1 + 1 + 4 + 1 + block.HWAddrLen + 4 + 4

var magic = [4]byte{'D', 'D', 'H', 'C'}

var (
	// ErrShortMessage is returned if a datagram is too short to hold a message
	ErrShortMessage = errors.New("peer message too short")

	// ErrBadMagic is returned if a datagram is not a peer message
	ErrBadMagic = errors.New("not a peer message")

	// ErrUnsupportedVersion is returned for messages of an unknown version
	ErrUnsupportedVersion = errors.New("unsupported peer message version")
)

// Message is the relay message sent between nodes
type Message struct {
	Type          Type
	TransactionID dhcpv4.TransactionID
	HWAddrLen     uint8
	HWAddr        block.HWAddr
	Address       net.IP
	LeaseSeconds  uint32
}

// NewRenewLease returns the message forwarding req for address to the
// owner of the block
func NewRenewLease(req *dhcpv4.DHCPv4, address net.IP) *Message {
	return newFromRequest(TypeRenewLease, req, address)
}

// NewRelease returns the message forwarding a client release of address
func NewRelease(req *dhcpv4.DHCPv4, address net.IP) *Message {
	return newFromRequest(TypeRelease, req, address)
}

func newFromRequest(t Type, req *dhcpv4.DHCPv4, address net.IP) *Message {
	return &Message{
		Type:          t,
		TransactionID: req.TransactionID,
		HWAddrLen:     uint8(len(req.ClientHWAddr)),
		HWAddr:        block.ToHWAddr(req.ClientHWAddr),
		Address:       append(net.IP{}, address.To4()...),
	}
}

// Reply returns the answer to m. A zero seconds value is only valid
// for TypeLeaseNak
func (m *Message) Reply(t Type, seconds uint32) *Message {
	return &Message{
		Type:          t,
		TransactionID: m.TransactionID,
		HWAddrLen:     m.HWAddrLen,
		HWAddr:        m.HWAddr,
		Address:       append(net.IP{}, m.Address...),
		LeaseSeconds:  seconds,
	}
}

// ClientHWAddr returns the client hardware address truncated to its length
func (m *Message) ClientHWAddr() net.HardwareAddr {
	return m.HWAddr.HardwareAddr(int(m.HWAddrLen))
}

// String implements fmt.Stringer
func (m *Message) String() string {
	return fmt.Sprintf("%s %s for %s (xid=%s, seconds=%d)", m.Type, m.Address, m.ClientHWAddr(), m.TransactionID, m.LeaseSeconds)
}

// ToBytes encodes m into its wire format
func (m *Message) ToBytes() []byte {
	buf := uio.NewBigEndianBuffer(make([]byte, 0, MessageLen))

	buf.WriteBytes(magic[:])
	buf.Write8(Version)
	buf.Write8(uint8(m.Type))
	buf.WriteBytes(m.TransactionID[:])
	buf.Write8(m.HWAddrLen)
	buf.WriteBytes(m.HWAddr[:])

	addr := m.Address.To4()
	if addr == nil {
		addr = net.IPv4zero.To4()
	}
	buf.WriteBytes(addr)
	buf.Write32(m.LeaseSeconds)

	return buf.Data()
}

// FromBytes decodes a peer message
func FromBytes(data []byte) (*Message, error) {
	if len(data) < MessageLen {
		return nil, ErrShortMessage
	}

	buf := uio.NewBigEndianBuffer(data)

	var mg [4]byte
	buf.ReadBytes(mg[:])
	if mg != magic {
		return nil, ErrBadMagic
	}

	if v := buf.Read8(); v != Version {
		return nil, ErrUnsupportedVersion
	}

	m := &Message{}
	m.Type = Type(buf.Read8())
	buf.ReadBytes(m.TransactionID[:])
	m.HWAddrLen = buf.Read8()
	buf.ReadBytes(m.HWAddr[:])

	m.Address = make(net.IP, net.IPv4len)
	buf.ReadBytes(m.Address)
	m.LeaseSeconds = buf.Read32()

	if err := buf.FinError(); err != nil {
		return nil, err
	}

	if m.Type < TypeRenewLease || m.Type > TypeRelease {
		return nil, fmt.Errorf("unknown peer message type %d", uint8(m.Type))
	}

	if m.HWAddrLen > block.HWAddrLen {
		return nil, fmt.Errorf("invalid hardware address length %d", m.HWAddrLen)
	}

	return m, nil
}

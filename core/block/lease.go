package block

import (
	"fmt"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// LeaseState is the state of a single address inside a block
type LeaseState int

// Possible lease states
const (
	Free LeaseState = iota
	Offered
	Leased
)

func (s LeaseState) String() string {
	switch s {
	case Free:
		return "free"
	case Offered:
		return "offered"
	case Leased:
		return "leased"
	}

	return fmt.Sprintf("LeaseState(%d)", int(s))
}

// HWAddrLen is the logical capacity of a client hardware address as
// carried in the chaddr field of a DHCP message
const HWAddrLen = 16

// HWAddr is the fixed-size client identity stored with each lease. DHCP
// over ethernet only uses the first 6 bytes but all 16 are compared.
type HWAddr [HWAddrLen]byte

// ToHWAddr converts a hardware address into its fixed-size representation.
// Bytes beyond HWAddrLen are dropped
func ToHWAddr(hw net.HardwareAddr) HWAddr {
	var id HWAddr
	copy(id[:], hw)
	return id
}

// HardwareAddr returns the first n bytes of id as a net.HardwareAddr
func (id HWAddr) HardwareAddr(n int) net.HardwareAddr {
	if n <= 0 || n > HWAddrLen {
		n = HWAddrLen
	}

	return append(net.HardwareAddr{}, id[:n]...)
}

// IsZero reports whether id is unset
func (id HWAddr) IsZero() bool {
	return id == HWAddr{}
}

// Lease is the state record of one address offset within a block
type Lease struct {
	State   LeaseState
	HwAddr  HWAddr
	XID     dhcpv4.TransactionID
	Expires time.Time
}

// Offer marks the lease as offered to the client identified by hw and xid
func (l *Lease) Offer(hw HWAddr, xid dhcpv4.TransactionID, expires time.Time) {
	l.HwAddr = hw
	l.XID = xid
	l.State = Offered
	l.Expires = expires
}

// Bind marks the lease as leased to the client identified by hw and xid
func (l *Lease) Bind(hw HWAddr, xid dhcpv4.TransactionID, expires time.Time) {
	l.HwAddr = hw
	l.XID = xid
	l.State = Leased
	l.Expires = expires
}

// Reset frees the lease and clears the client identity and transaction ID
func (l *Lease) Reset() {
	*l = Lease{}
}

// HeldBy reports whether the lease currently belongs to hw
func (l *Lease) HeldBy(hw HWAddr) bool {
	return l.State != Free && l.HwAddr == hw
}

// Matches reports whether the lease is offered to exactly this
// transaction and client
func (l *Lease) Matches(hw HWAddr, xid dhcpv4.TransactionID) bool {
	return l.State == Offered && l.XID == xid && l.HwAddr == hw
}

// ConflictsWith reports whether the lease is held by a client other than hw
func (l *Lease) ConflictsWith(hw HWAddr) bool {
	return l.State != Free && l.HwAddr != hw
}

// ExpiredAt returns true if a non-free lease has expired at t
func (l *Lease) ExpiredAt(t time.Time) bool {
	return l.State != Free && t.After(l.Expires)
}

// String implements fmt.Stringer
func (l *Lease) String() string {
	if l.State == Free {
		return "free"
	}

	return fmt.Sprintf("%s (%s; xid=%s; expires %s)", l.State, l.HwAddr.HardwareAddr(6), l.XID, l.Expires.Format(time.RFC3339))
}

// Package iprange contains helpers for IPv4 address arithmetic
package iprange

import (
	"encoding/binary"
	"fmt"
	"net"
)

// IPRange is a range of IP address from (inclusive) start to (inclusive)
// end IP.
type IPRange struct {
	Start net.IP
	End   net.IP
}

// Len returns the number of IP address available inside the range
func (r *IPRange) Len() int {
	if r == nil {
		return 0
	}

	end4, ok := IP2Int(r.End)
	if !ok {
		return 0
	}

	start4, ok := IP2Int(r.Start)
	if !ok || start4 > end4 {
		return 0
	}

	return int(end4) - int(start4) + 1
}

func (r *IPRange) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Contains checks if ip is part of the range
func (r *IPRange) Contains(ip net.IP) bool {
	x, ok := IP2Int(ip)
	if !ok {
		return false
	}

	start, startOk := IP2Int(r.Start)
	end, endOk := IP2Int(r.End)

	return startOk && endOk && start <= x && x <= end
}

// IP2Int converts a IPv4 address to it's unsigned integer representation
func IP2Int(ip net.IP) (uint32, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, false
	}

	return binary.BigEndian.Uint32(v4), true
}

// Int2IP converts a uint32 to it's IPv4 representation
func Int2IP(i uint32) net.IP {
	r := make([]byte, 4)
	binary.BigEndian.PutUint32(r, i)
	return net.IPv4(r[0], r[1], r[2], r[3]).To4()
}

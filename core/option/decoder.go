package option

import (
	"fmt"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// ToString returns a human readable representation of opt as used in
// the startup summary
func ToString(opt dhcpv4.Option) string {
	data := opt.Value.ToBytes()

	var d dhcpv4.OptionDecoder
	switch opt.Code.Code() {
	case dhcpv4.OptionRouter.Code(), dhcpv4.OptionDomainNameServer.Code(), dhcpv4.OptionNTPServers.Code():
		d = &dhcpv4.IPs{}

	case dhcpv4.OptionBroadcastAddress.Code():
		d = &dhcpv4.IP{}

	case dhcpv4.OptionSubnetMask.Code():
		d = &dhcpv4.IPMask{}

	case dhcpv4.OptionHostName.Code(), dhcpv4.OptionDomainName.Code(), dhcpv4.OptionRootPath.Code(),
		dhcpv4.OptionTFTPServerName.Code(), dhcpv4.OptionBootfileName.Code():
		var s dhcpv4.String
		d = &s

	case dhcpv4.OptionInterfaceMTU.Code():
		var u dhcpv4.Uint16
		d = &u

	case dhcpv4.OptionTimeOffset.Code():
		if len(data) == 4 {
			secs := int32(uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]))
			return fmt.Sprintf("%ds", secs)
		}
	}

	if d != nil && d.FromBytes(data) == nil {
		return d.String()
	}

	return dhcpv4.OptionGeneric{Data: data}.String()
}

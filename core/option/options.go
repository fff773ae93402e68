package option

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

type (
	single func(string) (dhcpv4.OptionValue, error)
	list   func([]string) (dhcpv4.OptionValue, error)
)

type known struct {
	code   dhcpv4.OptionCode
	parser interface{}
}

var (
	// ErrUnknownOption is returned from ParseKnown when the option name is not defined
	// in the list below
	ErrUnknownOption = errors.New("unknown option")

	options = map[string]known{
		// IP list options
		"router":     {dhcpv4.OptionRouter, list(IPListOption)},
		"nameserver": {dhcpv4.OptionDomainNameServer, list(IPListOption)},
		"ntp-server": {dhcpv4.OptionNTPServers, list(IPListOption)},

		// IP options
		"broadcast-address": {dhcpv4.OptionBroadcastAddress, single(IPOption)},
		"netmask":           {dhcpv4.OptionSubnetMask, single(MaskOption)},

		// numbers
		"time-offset": {dhcpv4.OptionTimeOffset, single(TimeOffsetOption)},
		"mtu":         {dhcpv4.OptionInterfaceMTU, single(UInt16Option)},

		// String options
		"hostname":         {dhcpv4.OptionHostName, single(StringOption)},
		"domain-name":      {dhcpv4.OptionDomainName, single(StringOption)},
		"root-path":        {dhcpv4.OptionRootPath, single(StringOption)},
		"tftp-server-name": {dhcpv4.OptionTFTPServerName, single(StringOption)},
		"filename":         {dhcpv4.OptionBootfileName, single(StringOption)},
	}
)

// StringOption converts the given string into a DHCPv4 option value
func StringOption(s string) (dhcpv4.OptionValue, error) {
	return dhcpv4.String(s), nil
}

// IPOption converts the given string into a DHCPv4 option value
func IPOption(s string) (dhcpv4.OptionValue, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("invalid IPv4 address %q", s)
	}

	return dhcpv4.IP(ip), nil
}

// MaskOption converts a dotted netmask or a prefix length (e.g. "/24")
// into a DHCPv4 option value
func MaskOption(s string) (dhcpv4.OptionValue, error) {
	if strings.HasPrefix(s, "/") {
		ones, err := strconv.Atoi(s[1:])
		if err != nil || ones < 0 || ones > 32 {
			return nil, fmt.Errorf("invalid prefix length %q", s)
		}

		return dhcpv4.IPMask(net.CIDRMask(ones, 32)), nil
	}

	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("invalid netmask %q", s)
	}

	return dhcpv4.IPMask(net.IPMask(ip)), nil
}

// IPListOption converts the given string slice into a DHCPv4 option value
func IPListOption(s []string) (dhcpv4.OptionValue, error) {
	ips := make([]net.IP, 0, len(s))

	for _, i := range s {
		ip := net.ParseIP(i).To4()
		if ip == nil {
			return nil, fmt.Errorf("invalid IPv4 address %q", i)
		}

		ips = append(ips, ip)
	}

	return dhcpv4.IPs(ips), nil
}

// UInt16Option converts the given string into a DHCPv4 option value
func UInt16Option(s string) (dhcpv4.OptionValue, error) {
	i64, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return nil, err
	}

	return dhcpv4.Uint16(uint16(i64)), nil
}

// TimeOffsetOption converts a signed duration (e.g. "-1h") or a number
// of seconds into the time-offset option
func TimeOffsetOption(s string) (dhcpv4.OptionValue, error) {
	var secs int64

	if d, err := time.ParseDuration(s); err == nil {
		secs = int64(d / time.Second)
	} else {
		secs, err = strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid time offset %q", s)
		}
	}

	v := uint32(int32(secs))
	return dhcpv4.OptionGeneric{Data: []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}}, nil
}

// ParseKnown parses the given name and string values
// and returns their DHCP option representation if known. Names in the
// form of "0x<code>" define raw options whose values are hex encoded
func ParseKnown(name string, values []string) (dhcpv4.OptionCode, dhcpv4.OptionValue, error) {
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("option %s: missing value", name)
	}

	if strings.HasPrefix(name, "0x") {
		return parseCustomOption(name, values)
	}

	opt, ok := options[name]
	if !ok {
		return nil, nil, ErrUnknownOption
	}

	var (
		val dhcpv4.OptionValue
		err error
	)

	switch fn := opt.parser.(type) {
	case list:
		val, err = fn(values)
	case single:
		if len(values) > 1 {
			return nil, nil, fmt.Errorf("option %s only supports one value", name)
		}
		val, err = fn(values[0])
	default:
		err = errors.New("unknown parser function")
	}

	if err != nil {
		return nil, nil, fmt.Errorf("option %s: %w", name, err)
	}

	return opt.code, val, nil
}

func parseCustomOption(name string, values []string) (dhcpv4.OptionCode, dhcpv4.OptionValue, error) {
	code, err := strconv.ParseUint(name, 0, 8)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid option code %q", name)
	}

	var payload []byte
	for _, v := range values {
		b, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
		if err != nil {
			return nil, nil, fmt.Errorf("option %s: %w", name, err)
		}

		payload = append(payload, b...)
	}

	return dhcpv4.GenericOptionCode(code), dhcpv4.OptionGeneric{Data: payload}, nil
}

// Code returns the DHCPv4 option code for the known option name
func Code(name string) (dhcpv4.OptionCode, bool) {
	opt, ok := options[name]
	return opt.code, ok
}

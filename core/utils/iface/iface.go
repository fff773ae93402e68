// Package iface contains helpers to find the network interface and
// IPv4 network a server block is served on
package iface

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoSubnet is returned by ByNameOrCIDR if an interface has no
// usable IPv4 network assigned
var ErrNoSubnet = errors.New("no usable subnet found")

// walk calls fn for every IP network assigned to any interface until fn
// returns true
func walk(fn func(ifi net.Interface, ipNet *net.IPNet) bool) (*net.Interface, *net.IPNet, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, err
	}

	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			return nil, nil, err
		}

		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}

			if fn(ifi, ipNet) {
				found := ifi
				return &found, ipNet, nil
			}
		}
	}

	return nil, nil, nil
}

// ByIP searches for the network interface that has ip assigned to it.
// IPs in the same subnet do not count as a match
func ByIP(ip net.IP) (*net.Interface, error) {
	ifi, _, err := walk(func(_ net.Interface, ipNet *net.IPNet) bool {
		return ipNet.IP.Equal(ip)
	})
	if err != nil {
		return nil, err
	}

	if ifi == nil {
		return nil, fmt.Errorf("failed to find interface for %s", ip.String())
	}

	return ifi, nil
}

// ByNameOrCIDR parses value as a CIDR notation and returns the IP and
// network. If value is not a CIDR it is used as the name of an interface
// whose only IPv4 network is returned
func ByNameOrCIDR(value string) (net.IP, *net.IPNet, error) {
	ip, ipNet, err := net.ParseCIDR(value)
	if err == nil {
		return ip, ipNet, nil
	}

	ifi, err := net.InterfaceByName(value)
	if err != nil {
		return nil, nil, err
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, nil, err
	}

	var found *net.IPNet
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.To4() == nil {
			continue
		}

		if found != nil {
			return nil, nil, fmt.Errorf("%s: interface names can only be used with one subnet assigned", value)
		}

		found = ipn
	}

	if found == nil {
		return nil, nil, fmt.Errorf("%s: %w", value, ErrNoSubnet)
	}

	network := &net.IPNet{IP: found.IP.Mask(found.Mask), Mask: found.Mask}
	return found.IP, network, nil
}

//go:build !linux

package route

import (
	"fmt"
	"net"
	"net/netip"
)

// interfaces lists interfaces with their addresses. Variable for mocking in tests.
var interfaces = func() ([]net.Interface, error) {
	return net.Interfaces()
}

// get finds the up interface with an IPv4 subnet containing ip. Only on-link
// destinations resolve; there is no routing table lookup on this platform.
func get(ip netip.Addr) (Route, error) {
	ifaces, err := interfaces()
	if err != nil {
		return Route{}, err
	}
	for i := range ifaces {
		intf := &ifaces[i]
		if intf.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := intf.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil || !ipNet.Contains(ip.AsSlice()) {
				continue
			}
			src, _ := netip.AddrFromSlice(ipNet.IP.To4())
			return Route{Destination: ip, Source: src, Interface: intf}, nil
		}
	}
	return Route{}, fmt.Errorf("no on-link interface found for %s", ip)
}

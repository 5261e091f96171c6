//go:build linux

package route

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/jsimonetti/rtnetlink"
	"golang.org/x/sys/unix"
)

// fetchRIBMessagesForIP fetches the RIB messages for the given IP address.
// Variable for mocking in tests.
var fetchRIBMessagesForIP = func(ip netip.Addr) ([]rtnetlink.RouteMessage, error) {
	c, err := rtnetlink.Dial(nil)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	tx := &rtnetlink.RouteMessage{
		Family:     unix.AF_INET,
		Table:      unix.RT_TABLE_MAIN,
		Attributes: rtnetlink.RouteAttributes{Dst: ip.AsSlice()},
	}
	return c.Route.Get(tx)
}

// interfaceByIndex is net.InterfaceByIndex. Variable for mocking in tests.
var interfaceByIndex = net.InterfaceByIndex

// parseRoute converts the kernel's answer to RTM_GETROUTE for ip into a Route.
func parseRoute(ip netip.Addr, msgs []rtnetlink.RouteMessage) (Route, error) {
	// RTM_GETROUTE on Linux returns exactly the route used for ip
	switch {
	case len(msgs) == 0:
		return Route{}, fmt.Errorf("no route found for %s", ip)
	case len(msgs) > 1:
		return Route{}, fmt.Errorf("multiple routes found for %s", ip)
	}
	m := msgs[0]

	dst, ok := netip.AddrFromSlice(m.Attributes.Dst)
	if !ok {
		return Route{}, fmt.Errorf("failed to parse destination address: %v", m.Attributes.Dst)
	}
	if dst.Unmap() != ip {
		return Route{}, fmt.Errorf("no matching route found for %s", ip)
	}
	src, ok := netip.AddrFromSlice(m.Attributes.Src)
	if !ok {
		return Route{}, fmt.Errorf("failed to parse source address: %v", m.Attributes.Src)
	}
	// On-link destinations have no gateway
	gw, _ := netip.AddrFromSlice(m.Attributes.Gateway)

	intf, err := interfaceByIndex(int(m.Attributes.OutIface))
	if err != nil {
		return Route{}, fmt.Errorf("failed to get interface by index %d: %w", m.Attributes.OutIface, err)
	}
	if intf.Flags&net.FlagUp == 0 {
		return Route{}, fmt.Errorf("interface %s is down", intf.Name)
	}

	return Route{
		Destination: dst.Unmap(),
		Gateway:     gw.Unmap(),
		Source:      src.Unmap(),
		Interface:   intf,
	}, nil
}

func get(ip netip.Addr) (Route, error) {
	msgs, err := fetchRIBMessagesForIP(ip)
	if err != nil {
		return Route{}, fmt.Errorf("failed to query route for %s: %w", ip, err)
	}
	return parseRoute(ip, msgs)
}

package route

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/jackpal/gateway"
)

// Route represents a network route with its destination, gateway, source address, and the associated network interface.
type Route struct {
	Destination netip.Addr
	Gateway     netip.Addr
	Source      netip.Addr
	Interface   *net.Interface
}

var errNotIPv4 = errors.New("not an IPv4 address")

// Get retrieves the most specific route for a given IPv4 address and returns it as a Route struct.
func Get(ip netip.Addr) (Route, error) {
	if !ip.Unmap().Is4() {
		return Route{}, fmt.Errorf("%v: %w", ip, errNotIPv4)
	}
	// Use platform-specific implementation to fetch the route
	return get(ip.Unmap())
}

// discoverGateway finds the default gateway. Variable for mocking in tests.
var discoverGateway = gateway.DiscoverGateway

// DefaultNetwork returns the /24 containing the default IPv4 gateway.
func DefaultNetwork() (netip.Prefix, error) {
	gw, err := discoverGateway()
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("failed to discover default gateway: %w", err)
	}
	addr, ok := netip.AddrFromSlice(gw)
	if !ok || !addr.Unmap().Is4() {
		return netip.Prefix{}, fmt.Errorf("default gateway %v: %w", gw, errNotIPv4)
	}
	return netip.PrefixFrom(addr.Unmap(), 24).Masked(), nil
}

// InterfaceFor returns the name of the interface that routes towards network.
func InterfaceFor(network netip.Prefix) (string, error) {
	r, err := Get(network.Masked().Addr().Next())
	if err != nil {
		return "", err
	}
	if r.Interface == nil {
		return "", fmt.Errorf("route towards %v has no interface", network)
	}
	return r.Interface.Name, nil
}

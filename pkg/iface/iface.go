package iface

import (
	"net"
)

// IsLAN reports whether an interface is a broadcast LAN interface, Ethernet
// or Wi-Fi, where every host of the local subnet is directly reachable.
// Tunnel, point-to-point and loopback interfaces are not.
func IsLAN(iface *net.Interface) bool {
	if iface == nil {
		return false
	}
	if iface.Flags&(net.FlagPointToPoint|net.FlagLoopback) != 0 {
		return false
	}
	// Most tunnel interfaces don't have MAC addresses
	if len(iface.HardwareAddr) == 0 {
		return false
	}
	return iface.Flags&net.FlagBroadcast != 0
}

// Kind classifies an interface for diagnostics: loopback, tunnel, wireless,
// ethernet or unknown.
func Kind(iface *net.Interface) string {
	switch {
	case iface == nil:
		return "unknown"
	case iface.Flags&net.FlagLoopback != 0:
		return "loopback"
	case !IsLAN(iface):
		return "tunnel"
	case isWireless(iface.Name):
		return "wireless"
	default:
		return "ethernet"
	}
}

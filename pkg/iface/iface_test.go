package iface

import (
	"net"
	"testing"
)

var mac = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

func TestIsLAN(t *testing.T) {
	tests := []struct {
		name     string
		iface    *net.Interface
		expected bool
	}{
		{
			name:     "nil interface",
			iface:    nil,
			expected: false,
		},
		{
			name:     "tun interface without hardware address",
			iface:    &net.Interface{Name: "tun0", Flags: net.FlagUp | net.FlagPointToPoint},
			expected: false,
		},
		{
			name:     "wg interface (WireGuard)",
			iface:    &net.Interface{Name: "wg0", Flags: net.FlagUp},
			expected: false,
		},
		{
			name:     "point-to-point with MAC",
			iface:    &net.Interface{Name: "ppp0", HardwareAddr: mac, Flags: net.FlagUp | net.FlagPointToPoint},
			expected: false,
		},
		{
			name:     "loopback",
			iface:    &net.Interface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
			expected: false,
		},
		{
			name:     "MAC without broadcast",
			iface:    &net.Interface{Name: "ib0", HardwareAddr: mac, Flags: net.FlagUp},
			expected: false,
		},
		{
			name:     "ethernet interface",
			iface:    &net.Interface{Name: "eth0", HardwareAddr: mac, Flags: net.FlagUp | net.FlagBroadcast | net.FlagMulticast},
			expected: true,
		},
		{
			name:     "wifi interface",
			iface:    &net.Interface{Name: "wlan0", HardwareAddr: mac, Flags: net.FlagUp | net.FlagBroadcast},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLAN(tt.iface); got != tt.expected {
				t.Errorf("IsLAN() = %v, want %v for interface %v", got, tt.expected, tt.iface)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name  string
		iface *net.Interface
		want  string
	}{
		{"nil", nil, "unknown"},
		{"loopback", &net.Interface{Name: "lo", Flags: net.FlagLoopback}, "loopback"},
		{"tunnel", &net.Interface{Name: "tun0", Flags: net.FlagPointToPoint}, "tunnel"},
		{"ethernet", &net.Interface{Name: "esweep-test-eth", HardwareAddr: mac, Flags: net.FlagBroadcast}, "ethernet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.iface); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

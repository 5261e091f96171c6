//go:build linux

package iface

import (
	"os"
	"path/filepath"
)

// sysfsNet is where the kernel exposes network devices. Variable for tests.
var sysfsNet = "/sys/class/net"

// isWireless checks for the wireless extensions or a cfg80211 phy link in sysfs.
func isWireless(name string) bool {
	for _, entry := range []string{"wireless", "phy80211"} {
		if _, err := os.Stat(filepath.Join(sysfsNet, name, entry)); err == nil {
			return true
		}
	}
	return false
}

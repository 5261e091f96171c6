//go:build !linux

package iface

func isWireless(name string) bool {
	return false
}

package probe

import (
	"fmt"
	"log/slog"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ListenICMP opens a raw IPv4 ICMP socket bound to address ("0.0.0.0" for any).
// Raw sockets need root or CAP_NET_RAW.
func ListenICMP(address string) (Socket, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw ICMP socket: %w", err)
	}

	// Only let echo replies reach userspace. Not every platform supports the
	// filter; stray packets are dropped by the decoder anyway.
	var filter ipv4.ICMPFilter
	filter.SetAll(true)
	filter.Accept(ipv4.ICMPTypeEchoReply)
	if p := conn.IPv4PacketConn(); p != nil {
		if err := p.SetICMPFilter(&filter); err != nil {
			slog.Debug("ICMP filter not applied", "error", err)
		}
	}
	return conn, nil
}

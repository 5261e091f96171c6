package probe

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	errNotEchoReply = errors.New("not an ICMPv4 echo reply")
	errBadChecksum  = errors.New("bad ICMP checksum")
)

// decodeEchoReply decodes an echo reply. Raw sockets hand us the ICMP message either
// bare or behind its IPv4 header depending on the platform, so the first nibble
// decides where decoding starts. An echo reply starts with type 0, an IPv4 header with 0x4.
func decodeEchoReply(data []byte) (*layers.ICMPv4, error) {
	if len(data) == 0 {
		return nil, errNotEchoReply
	}
	first := layers.LayerTypeICMPv4
	if data[0]>>4 == 4 {
		first = layers.LayerTypeIPv4
	}

	packet := gopacket.NewPacket(data, first, gopacket.NoCopy)
	icmpLayer := packet.Layer(layers.LayerTypeICMPv4)
	if icmpLayer == nil {
		return nil, errNotEchoReply
	}
	icmp := icmpLayer.(*layers.ICMPv4)
	if icmp.TypeCode.Type() != layers.ICMPv4TypeEchoReply {
		return nil, errNotEchoReply
	}

	msg := make([]byte, 0, len(icmp.Contents)+len(icmp.Payload))
	msg = append(msg, icmp.Contents...)
	msg = append(msg, icmp.Payload...)
	if checksum(msg) != 0 {
		return nil, errBadChecksum
	}
	return icmp, nil
}

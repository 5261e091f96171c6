package probe

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// PayloadSize is the number of data bytes following the echo header.
	PayloadSize = 32

	maxReplySize = 512
)

// echoPayload returns the fixed request payload: bytes 0, 1, 2, ... PayloadSize-1.
func echoPayload() []byte {
	data := make([]byte, PayloadSize)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

// encodeEchoRequest serializes an ICMPv4 echo request into buf. gopacket zeroes the
// checksum field and computes the internet checksum over header and payload.
func encodeEchoRequest(buf gopacket.SerializeBuffer, id, seq uint16) error {
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       id,
		Seq:      seq,
	}
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
	}
	return gopacket.SerializeLayers(buf, opts, icmp, gopacket.Payload(echoPayload()))
}

// checksum computes the internet checksum (RFC 1071) of b.
func checksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}

package scan

import (
	"net/netip"
	"time"
)

const (
	// FirstHost and LastHost bound the host octets a scan probes. Network and
	// broadcast addresses are never probed.
	FirstHost = 1
	LastHost  = 254

	// NoReply marks a host that did not answer.
	NoReply int8 = -1
	// MaxLatency is the largest latency stored, in milliseconds.
	MaxLatency int8 = 100
)

// Result holds one latency per host octet. Index 0 is unused.
type Result [LastHost + 1]int8

// Host is a responsive host in a Result
type Host struct {
	Octet   uint8
	Latency int8 // milliseconds, 0..MaxLatency
}

// NewResult returns a result with every entry set to NoReply.
func NewResult() Result {
	var r Result
	r.Reset()
	return r
}

// Reset sets every entry to NoReply.
func (r *Result) Reset() {
	for i := range r {
		r[i] = NoReply
	}
}

// Latency returns the stored latency for octet and whether the host answered.
func (r *Result) Latency(octet uint8) (int8, bool) {
	if int(octet) >= len(r) {
		return NoReply, false
	}
	v := r[octet]
	return v, v != NoReply
}

// Responsive lists the hosts that answered, in octet order.
func (r *Result) Responsive() []Host {
	var hosts []Host
	for i := FirstHost; i <= LastHost; i++ {
		if r[i] != NoReply {
			hosts = append(hosts, Host{Octet: uint8(i), Latency: r[i]})
		}
	}
	return hosts
}

// HostAddr replaces the low byte of base with octet.
func HostAddr(base netip.Addr, octet uint8) netip.Addr {
	b := base.As4()
	b[3] = octet
	return netip.AddrFrom4(b)
}

// clampLatency converts a round-trip time to whole milliseconds capped at MaxLatency.
func clampLatency(rtt time.Duration) int8 {
	ms := rtt.Milliseconds()
	switch {
	case ms < 0:
		return 0
	case ms > int64(MaxLatency):
		return MaxLatency
	}
	return int8(ms)
}

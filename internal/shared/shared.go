package shared

import (
	"net/netip"
	"time"
)

// HostResult is one responsive host in a sweep
type HostResult struct {
	Octet   uint8  `json:"octet"`
	IP      string `json:"ip"`
	Latency int8   `json:"latency_ms"` // Clamped round-trip time in milliseconds
	PTR     string `json:"ptr,omitempty"`
}

// ScanReport is the outcome of a single sweep of a /24
type ScanReport struct {
	ScanID     string        `json:"scan_id"`
	ScanNum    uint          `json:"scan_num"` // Which sweep (0, 1, 2, ...)
	Network    string        `json:"network"`
	Workers    int           `json:"workers"`
	Timeout    time.Duration `json:"timeout_ns"`
	Start      time.Time     `json:"start"`
	Duration   time.Duration `json:"duration_ns"`
	Probed     int           `json:"probed"`
	Responsive int           `json:"responsive"`
	Hosts      []HostResult  `json:"hosts"` // Sorted by octet
}

// Latencies returns the latency of every responsive host keyed by octet
func (r *ScanReport) Latencies() map[uint8]int8 {
	m := make(map[uint8]int8, len(r.Hosts))
	for _, h := range r.Hosts {
		m[h.Octet] = h.Latency
	}
	return m
}

// PresenceState says whether a host is present on the network
type PresenceState string

const (
	HostUp   PresenceState = "up"
	HostDown PresenceState = "down"
)

// PresenceEvent reports a host appearing or disappearing
type PresenceEvent struct {
	IP       netip.Addr    `json:"ip"`
	State    PresenceState `json:"state"`
	Time     time.Time     `json:"time"`
	LastSeen time.Time     `json:"last_seen"`
	PTR      string        `json:"ptr,omitempty"`
}

// PresentHost is a host currently tracked as present
type PresentHost struct {
	IP        netip.Addr `json:"ip"`
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	Latency   int8       `json:"latency_ms"` // Latency at the last sighting
	PTR       string     `json:"ptr,omitempty"`
}

// OutputInfo describes the sweep setup shown by interactive outputs
type OutputInfo struct {
	Network  string
	Workers  int
	Timeout  time.Duration
	Interval time.Duration
	Count    uint
}

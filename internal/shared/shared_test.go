package shared

import (
	"encoding/json"
	"net/netip"
	"strings"
	"testing"
	"time"
)

func TestScanReport_Latencies(t *testing.T) {
	tests := []struct {
		name  string
		hosts []HostResult
		want  map[uint8]int8
	}{
		{
			name:  "no hosts",
			hosts: nil,
			want:  map[uint8]int8{},
		},
		{
			name: "several hosts",
			hosts: []HostResult{
				{Octet: 1, IP: "192.0.2.1", Latency: 5},
				{Octet: 20, IP: "192.0.2.20", Latency: 100},
				{Octet: 254, IP: "192.0.2.254", Latency: 0},
			},
			want: map[uint8]int8{1: 5, 20: 100, 254: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ScanReport{Hosts: tt.hosts}
			got := r.Latencies()
			if len(got) != len(tt.want) {
				t.Fatalf("Latencies() = %v, want %v", got, tt.want)
			}
			for octet, lat := range tt.want {
				if got[octet] != lat {
					t.Errorf("Latencies()[%d] = %d, want %d", octet, got[octet], lat)
				}
			}
		})
	}
}

func TestScanReport_JSONFieldNames(t *testing.T) {
	r := ScanReport{
		ScanID:  "b3c1",
		Network: "192.0.2.0/24",
		Workers: 4,
		Timeout: 100 * time.Millisecond,
		Hosts:   []HostResult{{Octet: 7, IP: "192.0.2.7", Latency: 12}},
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out := string(b)
	for _, want := range []string{`"scan_id":"b3c1"`, `"timeout_ns":100000000`, `"latency_ms":12`, `"octet":7`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON %s missing %s", out, want)
		}
	}
	if strings.Contains(out, `"ptr"`) {
		t.Errorf("empty PTR should be omitted: %s", out)
	}
}

func TestPresenceEvent_JSON(t *testing.T) {
	ev := PresenceEvent{IP: netip.MustParseAddr("192.0.2.9"), State: HostDown}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(b), `"ip":"192.0.2.9"`) || !strings.Contains(string(b), `"state":"down"`) {
		t.Errorf("unexpected JSON %s", b)
	}
}

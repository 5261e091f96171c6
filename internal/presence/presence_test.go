package presence

import (
	"testing"
	"time"

	"github.com/tkjaer/esweep/internal/shared"
)

func report(hosts ...string) *shared.ScanReport {
	r := &shared.ScanReport{}
	for _, ip := range hosts {
		r.Hosts = append(r.Hosts, shared.HostResult{IP: ip, Latency: 3})
	}
	return r
}

func eventStrings(events []shared.PresenceEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = string(ev.State) + " " + ev.IP.String()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTracker_Update(t *testing.T) {
	tr := NewTracker(50 * time.Millisecond)

	got := eventStrings(tr.Update(report("192.0.2.20", "192.0.2.3")))
	if want := []string{"up 192.0.2.3", "up 192.0.2.20"}; !equal(got, want) {
		t.Errorf("first sweep events = %v, want %v", got, want)
	}

	// Within the TTL a silent host stays present and a seen host is not re-announced
	if got := tr.Update(report("192.0.2.3")); len(got) != 0 {
		t.Errorf("second sweep events = %v, want none", eventStrings(got))
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}

	time.Sleep(80 * time.Millisecond)

	got = eventStrings(tr.Update(report("192.0.2.3", "192.0.2.9")))
	if want := []string{"down 192.0.2.20", "up 192.0.2.9"}; !equal(got, want) {
		t.Errorf("third sweep events = %v, want %v", got, want)
	}

	hosts := tr.Hosts()
	if len(hosts) != 2 || hosts[0].IP.String() != "192.0.2.3" || hosts[1].IP.String() != "192.0.2.9" {
		t.Errorf("Hosts() = %v", hosts)
	}
}

func TestTracker_KeepsFirstSeenAndPTR(t *testing.T) {
	tr := NewTracker(time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	tr.now = func() time.Time { return now }

	tr.Update(&shared.ScanReport{Hosts: []shared.HostResult{{IP: "192.0.2.5", Latency: 4, PTR: "nas.lan"}}})
	now = now.Add(30 * time.Second)
	tr.Update(&shared.ScanReport{Hosts: []shared.HostResult{{IP: "192.0.2.5", Latency: 9}}})

	hosts := tr.Hosts()
	if len(hosts) != 1 {
		t.Fatalf("Hosts() = %v, want one host", hosts)
	}
	h := hosts[0]
	if !h.FirstSeen.Equal(start) || !h.LastSeen.Equal(now) {
		t.Errorf("FirstSeen=%v LastSeen=%v, want %v and %v", h.FirstSeen, h.LastSeen, start, now)
	}
	if h.Latency != 9 || h.PTR != "nas.lan" {
		t.Errorf("Latency=%d PTR=%q, want 9 and nas.lan", h.Latency, h.PTR)
	}
}

func TestTracker_DownEventCarriesLastSeen(t *testing.T) {
	tr := NewTracker(20 * time.Millisecond)
	tr.Update(report("192.0.2.1"))
	first := tr.Hosts()[0].LastSeen

	time.Sleep(40 * time.Millisecond)
	events := tr.Update(report())

	if len(events) != 1 || events[0].State != shared.HostDown {
		t.Fatalf("events = %v, want one down event", eventStrings(events))
	}
	if !events[0].LastSeen.Equal(first) {
		t.Errorf("LastSeen = %v, want %v", events[0].LastSeen, first)
	}
	if tr.Len() != 0 {
		t.Errorf("Len() = %d after expiry, want 0", tr.Len())
	}
}

func TestTracker_IgnoresBadAddresses(t *testing.T) {
	tr := NewTracker(time.Minute)
	if events := tr.Update(report("not-an-ip")); len(events) != 0 {
		t.Errorf("events = %v, want none", eventStrings(events))
	}
}

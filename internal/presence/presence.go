// Package presence tracks which hosts are on the network across sweeps. A host
// is present from the first sweep it answers until it has stayed silent for
// longer than the presence TTL.
package presence

import (
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/tkjaer/esweep/internal/shared"
)

type Tracker struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[netip.Addr, shared.PresentHost]
	// known holds every host an up event was emitted for and no down event yet
	known map[netip.Addr]shared.PresentHost
	now   func() time.Time
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		cache: ttlcache.New(
			ttlcache.WithTTL[netip.Addr, shared.PresentHost](ttl),
			ttlcache.WithDisableTouchOnHit[netip.Addr, shared.PresentHost](),
		),
		known: make(map[netip.Addr]shared.PresentHost),
		now:   time.Now,
	}
}

// Update records the hosts of a finished sweep and returns the resulting
// presence changes, down events first, each group ordered by address.
func (t *Tracker) Update(report *shared.ScanReport) []shared.PresenceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	seen := make(map[netip.Addr]shared.HostResult, len(report.Hosts))
	for _, h := range report.Hosts {
		ip, err := netip.ParseAddr(h.IP)
		if err != nil {
			continue
		}
		seen[ip] = h
	}

	var down, up []shared.PresenceEvent
	for ip, host := range t.known {
		if _, ok := seen[ip]; ok {
			continue
		}
		if t.cache.Get(ip) != nil {
			continue
		}
		down = append(down, shared.PresenceEvent{
			IP:       ip,
			State:    shared.HostDown,
			Time:     now,
			LastSeen: host.LastSeen,
			PTR:      host.PTR,
		})
		delete(t.known, ip)
	}

	for ip, h := range seen {
		prev, wasKnown := t.known[ip]
		host := shared.PresentHost{
			IP:        ip,
			FirstSeen: now,
			LastSeen:  now,
			Latency:   h.Latency,
			PTR:       h.PTR,
		}
		if wasKnown {
			host.FirstSeen = prev.FirstSeen
			if host.PTR == "" {
				host.PTR = prev.PTR
			}
		}
		t.cache.Set(ip, host, ttlcache.DefaultTTL)
		t.known[ip] = host
		if !wasKnown {
			up = append(up, shared.PresenceEvent{
				IP:       ip,
				State:    shared.HostUp,
				Time:     now,
				LastSeen: now,
				PTR:      host.PTR,
			})
		}
	}
	t.cache.DeleteExpired()

	byIP := func(a, b shared.PresenceEvent) int { return a.IP.Compare(b.IP) }
	slices.SortFunc(down, byIP)
	slices.SortFunc(up, byIP)
	return append(down, up...)
}

// Hosts returns the hosts currently present, ordered by address.
func (t *Tracker) Hosts() []shared.PresentHost {
	t.mu.Lock()
	defer t.mu.Unlock()

	hosts := make([]shared.PresentHost, 0, len(t.known))
	for _, host := range t.known {
		hosts = append(hosts, host)
	}
	slices.SortFunc(hosts, func(a, b shared.PresentHost) int { return a.IP.Compare(b.IP) })
	return hosts
}

// Len returns the number of hosts currently present.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.known)
}

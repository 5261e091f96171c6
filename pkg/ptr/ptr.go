package ptr

import (
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PtrManager handles PTR lookups with simple caching
type PtrManager struct {
	mu         sync.RWMutex
	cache      map[string]string
	lookupFunc func(ip string) ([]string, error)
	retries    int
	retryDelay time.Duration
}

// NewPtrManager creates a new PtrManager
func NewPtrManager() *PtrManager {
	return &PtrManager{
		cache:      make(map[string]string),
		lookupFunc: net.LookupAddr,
		retries:    3,
		retryDelay: 100 * time.Millisecond,
	}
}

// RequestPTR looks up the PTR record for ip unless it is cached or already in flight.
func (pm *PtrManager) RequestPTR(ip string) {
	pm.mu.Lock()
	if _, exists := pm.cache[ip]; exists {
		pm.mu.Unlock()
		return
	}
	pm.cache[ip] = "" // in progress
	pm.mu.Unlock()

	for attempt := range pm.retries {
		names, err := pm.lookupFunc(ip)
		if err == nil && len(names) > 0 {
			pm.mu.Lock()
			pm.cache[ip] = normalizePTR(names[0])
			pm.mu.Unlock()
			return
		}
		if attempt < pm.retries-1 {
			time.Sleep(pm.retryDelay)
		}
	}
}

// GetPTR retrieves the cached PTR result for the given IP address
// Returns the PTR and a boolean indicating if it was found
func (pm *PtrManager) GetPTR(ip string) (string, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	ptr, exists := pm.cache[ip]
	if ptr == "" {
		return "", false
	}
	return ptr, exists
}

// ResolveAll looks up every ip with at most limit lookups in flight and returns
// the names found.
func (pm *PtrManager) ResolveAll(ips []string, limit int) map[string]string {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, ip := range ips {
		g.Go(func() error {
			pm.RequestPTR(ip)
			return nil
		})
	}
	_ = g.Wait()

	names := make(map[string]string, len(ips))
	for _, ip := range ips {
		if name, ok := pm.GetPTR(ip); ok {
			names[ip] = name
		}
	}
	return names
}

func normalizePTR(name string) string {
	return strings.TrimSuffix(name, ".")
}

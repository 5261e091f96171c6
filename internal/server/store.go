package server

import (
	"sync"

	"github.com/tkjaer/esweep/internal/shared"
)

// Store keeps the latest scan report for the API. It is registered as an output.
type Store struct {
	mu     sync.RWMutex
	latest *shared.ScanReport
}

func (s *Store) CompleteScan(report *shared.ScanReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = report
}

func (s *Store) HostChange(event shared.PresenceEvent) {
	// Presence is served from the tracker directly
}

func (s *Store) Close() error {
	return nil
}

// Latest returns the most recent report, or nil before the first sweep completes
func (s *Store) Latest() *shared.ScanReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

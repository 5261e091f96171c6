package scan

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/tkjaer/esweep/internal/probe"
)

// Scanner sweeps /24 subnets. The echo sequence persists across scans.
type Scanner struct {
	open  Opener
	seq   *probe.Sequence
	clock func() time.Time
}

// Option configures a Scanner
type Option func(*Scanner)

// WithOpener replaces the raw socket opener.
func WithOpener(open Opener) Option {
	return func(s *Scanner) {
		s.open = open
	}
}

// WithClock replaces the clock used to time replies.
func WithClock(clock func() time.Time) Option {
	return func(s *Scanner) {
		s.clock = clock
	}
}

// NewScanner creates a scanner probing through raw ICMP sockets.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		open: func() (probe.Socket, error) {
			return probe.ListenICMP("0.0.0.0")
		},
		seq:   new(probe.Sequence),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan probes hosts 1..254 of base's /24 with workers concurrent workers, each
// waiting up to timeout for every reply. It returns once every worker finished.
func (s *Scanner) Scan(base netip.Addr, timeout time.Duration, workers int) (Result, error) {
	res := NewResult()
	if err := s.ScanInto(&res, base, timeout, workers); err != nil {
		return res, err
	}
	return res, nil
}

// ScanInto is like Scan but fills dst, which is reset first.
func (s *Scanner) ScanInto(dst *Result, base netip.Addr, timeout time.Duration, workers int) error {
	switch {
	case dst == nil:
		return errors.New("nil result buffer")
	case !base.Is4():
		return fmt.Errorf("base address %v is not IPv4", base)
	case workers < 1:
		return fmt.Errorf("worker count must be at least 1, got %d", workers)
	case timeout <= 0:
		return fmt.Errorf("probe timeout must be positive, got %v", timeout)
	}

	dst.Reset()
	tasks := s.tasks(dst, base, timeout, workers)

	slog.Debug("Starting subnet scan",
		"base", base,
		"timeout", timeout,
		"workers", workers,
	)

	var wg sync.WaitGroup
	for _, t := range tasks {
		w := &Worker{task: t, open: s.open, seq: s.seq, clock: s.clock}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run()
		}()
	}
	wg.Wait()

	for _, t := range tasks {
		if !t.Done() {
			// Run always finishes its task, so this is a programming error.
			return fmt.Errorf("worker %d returned without finishing", t.Index)
		}
	}
	slog.Debug("Subnet scan complete", "base", base)
	return nil
}

// tasks builds one task per worker over disjoint slices of dst.
func (s *Scanner) tasks(dst *Result, base netip.Addr, timeout time.Duration, workers int) []*Task {
	ranges := Partition(workers)
	tasks := make([]*Task, len(ranges))
	for i, r := range ranges {
		t := &Task{
			Index:   i,
			Base:    base,
			Range:   r,
			Timeout: timeout,
		}
		if r.Len > 0 {
			t.Results = dst[r.Start:r.End():r.End()]
		}
		tasks[i] = t
	}
	return tasks
}

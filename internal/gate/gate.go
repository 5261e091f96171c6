// Package gate tracks whether the station has joined a network: an interface
// that is up and running with an IPv4 address. Association with an access
// point is left to the host OS; the gate only observes its outcome.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Gate reports whether the network is usable for sweeping
type Gate interface {
	// Connect starts tracking the link. It returns once the initial state is known.
	Connect(ctx context.Context) error
	IsConnected() bool
	Close() error
}

// ErrClosed is returned when connecting a gate that has been closed
var ErrClosed = errors.New("gate closed")

// WaitConnected polls g until it reports connected or ctx is done.
func WaitConnected(ctx context.Context, g Gate, poll time.Duration) error {
	if g.IsConnected() {
		return nil
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if g.IsConnected() {
				return nil
			}
		}
	}
}

// state holds the connected flag shared by gate implementations and logs its transitions
type state struct {
	name      string
	connected atomic.Bool
}

func (s *state) set(connected bool) {
	if s.connected.Swap(connected) == connected {
		return
	}
	iface := s.name
	if iface == "" {
		iface = "any"
	}
	if connected {
		slog.Info("Connected", "interface", iface)
	} else {
		slog.Warn("Disconnected", "interface", iface)
	}
}

// interfaces lists the host's interfaces and their addresses. Variable for mocking in tests.
var interfaces = func() ([]net.Interface, func(net.Interface) ([]net.Addr, error), error) {
	ifaces, err := net.Interfaces()
	return ifaces, func(i net.Interface) ([]net.Addr, error) { return i.Addrs() }, err
}

// connectedInterface reports whether the named interface, or any non-loopback
// interface when name is empty, is up and running with an IPv4 address.
func connectedInterface(name string, ifaces []net.Interface, addrsOf func(net.Interface) ([]net.Addr, error)) bool {
	for _, iface := range ifaces {
		if name != "" && iface.Name != name {
			continue
		}
		if name == "" && iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagRunning == 0 {
			continue
		}
		addrs, err := addrsOf(iface)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.To4() != nil {
				return true
			}
		}
	}
	return false
}

// PollingGate checks the interface list at a fixed interval
type PollingGate struct {
	state
	interval time.Duration

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewPollingGate(name string, interval time.Duration) *PollingGate {
	return &PollingGate{
		state:    state{name: name},
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (g *PollingGate) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.stop:
		return ErrClosed
	default:
	}
	if g.started {
		return nil
	}
	g.started = true
	g.poll()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-g.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.poll()
			}
		}
	}()
	return nil
}

func (g *PollingGate) poll() {
	ifaces, addrsOf, err := interfaces()
	if err != nil {
		slog.Debug("Failed to list interfaces", "error", err)
		g.set(false)
		return
	}
	g.set(connectedInterface(g.name, ifaces, addrsOf))
}

func (g *PollingGate) IsConnected() bool {
	return g.connected.Load()
}

func (g *PollingGate) Close() error {
	g.once.Do(func() {
		close(g.stop)
	})
	g.wg.Wait()
	return nil
}

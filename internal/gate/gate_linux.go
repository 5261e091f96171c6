//go:build linux

package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

// eventConn is the receiving side of an rtnetlink multicast subscription
type eventConn interface {
	Receive() ([]rtnetlink.Message, []netlink.Message, error)
	Close() error
}

// subscribe joins the link and IPv4 address multicast groups. Variable for mocking in tests.
var subscribe = func() (eventConn, error) {
	return rtnetlink.Dial(&netlink.Config{Groups: unix.RTMGRP_LINK | unix.RTMGRP_IPV4_IFADDR})
}

// queryLinks dumps the current links and addresses. Variable for mocking in tests.
var queryLinks = func() ([]rtnetlink.LinkMessage, []rtnetlink.AddressMessage, error) {
	c, err := rtnetlink.Dial(nil)
	if err != nil {
		return nil, nil, err
	}
	defer c.Close()

	links, err := c.Link.List()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list links: %w", err)
	}
	addrs, err := c.Address.List()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return links, addrs, nil
}

// connectedLink reports whether the named link, or any non-loopback link when
// name is empty, is up and running with an IPv4 address.
func connectedLink(name string, links []rtnetlink.LinkMessage, addrs []rtnetlink.AddressMessage) bool {
	usable := make(map[uint32]bool)
	for _, l := range links {
		if l.Attributes == nil {
			continue
		}
		if name != "" && l.Attributes.Name != name {
			continue
		}
		if name == "" && l.Flags&unix.IFF_LOOPBACK != 0 {
			continue
		}
		if l.Flags&unix.IFF_UP != 0 && l.Flags&unix.IFF_RUNNING != 0 {
			usable[l.Index] = true
		}
	}
	for _, a := range addrs {
		if a.Family != unix.AF_INET || !usable[a.Index] {
			continue
		}
		if a.Attributes != nil && (a.Attributes.Address != nil || a.Attributes.Local != nil) {
			return true
		}
	}
	return false
}

// NetlinkGate follows rtnetlink link and address notifications
type NetlinkGate struct {
	state

	mu   sync.Mutex
	conn eventConn
	done chan struct{} // closed when the receive loop exits
	stop chan struct{}
	once sync.Once
}

// New returns the platform's event-driven gate for the named interface,
// or for any interface when name is empty.
func New(name string) Gate {
	return &NetlinkGate{
		state: state{name: name},
		stop:  make(chan struct{}),
	}
}

func (g *NetlinkGate) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.stop:
		return ErrClosed
	default:
	}
	if g.conn != nil {
		return nil
	}

	// Subscribe before the initial query so no change falls in between
	conn, err := subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to link events: %w", err)
	}
	if err := g.refresh(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to query link state: %w", err)
	}
	g.conn = conn
	g.done = make(chan struct{})
	go g.receive(conn, g.done)

	go func() {
		select {
		case <-ctx.Done():
			g.Close()
		case <-g.stop:
		}
	}()
	return nil
}

func (g *NetlinkGate) receive(conn eventConn, done chan struct{}) {
	defer close(done)
	for {
		msgs, _, err := conn.Receive()
		if err != nil {
			select {
			case <-g.stop:
			default:
				slog.Warn("Link event subscription failed", "error", err)
				g.set(false)
			}
			return
		}
		for _, m := range msgs {
			switch m := m.(type) {
			case *rtnetlink.LinkMessage:
				slog.Debug("Link event", "index", m.Index, "flags", m.Flags)
			case *rtnetlink.AddressMessage:
				slog.Debug("Address event", "index", m.Index, "family", m.Family)
			}
		}
		if err := g.refresh(); err != nil {
			slog.Debug("Failed to refresh link state", "error", err)
		}
	}
}

func (g *NetlinkGate) refresh() error {
	links, addrs, err := queryLinks()
	if err != nil {
		return err
	}
	g.set(connectedLink(g.name, links, addrs))
	return nil
}

func (g *NetlinkGate) IsConnected() bool {
	return g.connected.Load()
}

// Close stops following events and waits for the receive loop to exit.
func (g *NetlinkGate) Close() error {
	var err error
	g.once.Do(func() {
		close(g.stop)
		g.mu.Lock()
		conn := g.conn
		g.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})

	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	if done != nil {
		<-done
	}
	return err
}

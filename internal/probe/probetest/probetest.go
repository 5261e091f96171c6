// Package probetest provides an in-memory ICMP network for exercising probers and
// scanners without raw sockets.
package probetest

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Clock is a manually advanced clock. Only replying hosts move it forward.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Network simulates a subnet of hosts answering echo requests after a fixed delay.
type Network struct {
	clock *Clock

	mu          sync.Mutex
	hosts       map[netip.Addr]time.Duration
	unreachable map[netip.Addr]bool
	probed      []netip.Addr
	opened      int
	openErr     error
}

func NewNetwork(clock *Clock) *Network {
	return &Network{
		clock:       clock,
		hosts:       make(map[netip.Addr]time.Duration),
		unreachable: make(map[netip.Addr]bool),
	}
}

// AddHost makes addr answer every echo request after rtt.
func (n *Network) AddHost(addr netip.Addr, rtt time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hosts[addr] = rtt
}

// SetUnreachable makes sends to addr fail.
func (n *Network) SetUnreachable(addr netip.Addr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unreachable[addr] = true
}

// FailOpen makes every subsequent Open return err.
func (n *Network) FailOpen(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.openErr = err
}

// Open returns a new socket attached to the network.
func (n *Network) Open() (*Socket, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.openErr != nil {
		return nil, n.openErr
	}
	n.opened++
	return &Socket{network: n}, nil
}

// Opened reports how many sockets have been opened.
func (n *Network) Opened() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.opened
}

// Probed returns every target an echo request was written to, in send order.
func (n *Network) Probed() []netip.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]netip.Addr(nil), n.probed...)
}

type packet struct {
	data  []byte
	from  netip.Addr
	delay time.Duration
}

// Socket is a fake raw ICMP socket.
type Socket struct {
	network *Network

	mu       sync.Mutex
	pending  []packet
	deadline time.Time
	closed   bool
}

// Inject queues a packet that will be read before any reply to later requests.
func (s *Socket) Inject(data []byte, from netip.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, packet{data: data, from: from})
}

// Closed reports whether Close was called.
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Socket) WriteTo(b []byte, dst net.Addr) (int, error) {
	ipAddr, ok := dst.(*net.IPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected address type %T", dst)
	}
	target, ok := netip.AddrFromSlice(ipAddr.IP)
	if !ok {
		return 0, errors.New("invalid destination address")
	}
	target = target.Unmap()

	pkt := gopacket.NewPacket(b, layers.LayerTypeICMPv4, gopacket.Default)
	icmpLayer := pkt.Layer(layers.LayerTypeICMPv4)
	if icmpLayer == nil {
		return 0, errors.New("not an ICMPv4 message")
	}
	req := icmpLayer.(*layers.ICMPv4)

	n := s.network
	n.mu.Lock()
	n.probed = append(n.probed, target)
	unreachable := n.unreachable[target]
	rtt, alive := n.hosts[target]
	n.mu.Unlock()

	if unreachable {
		return 0, &net.OpError{Op: "write", Net: "ip4:icmp", Err: syscall.EHOSTUNREACH}
	}
	if alive {
		reply, err := EchoReply(req.Id, req.Seq, req.Payload)
		if err != nil {
			return 0, err
		}
		s.mu.Lock()
		s.pending = append(s.pending, packet{data: reply, from: target, delay: rtt})
		s.mu.Unlock()
	}
	return len(b), nil
}

func (s *Socket) ReadFrom(b []byte) (int, net.Addr, error) {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return 0, nil, os.ErrDeadlineExceeded
	}
	p := s.pending[0]
	s.pending = s.pending[1:]
	deadline := s.deadline
	s.mu.Unlock()

	clock := s.network.clock
	if !deadline.IsZero() && clock.Now().Add(p.delay).After(deadline) {
		clock.Advance(deadline.Sub(clock.Now()))
		return 0, nil, os.ErrDeadlineExceeded
	}
	clock.Advance(p.delay)

	n := copy(b, p.data)
	return n, &net.IPAddr{IP: p.from.AsSlice()}, nil
}

func (s *Socket) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = t
	return nil
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// EchoReply builds a checksummed ICMPv4 echo reply.
func EchoReply(id, seq uint16, payload []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0),
		Id:       id,
		Seq:      seq,
	}
	opts := gopacket.SerializeOptions{ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, icmp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WithIPv4Header prepends an IPv4 header from src to dst, as some platforms deliver it.
func WithIPv4Header(icmpMsg []byte, src, dst netip.Addr) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    src.AsSlice(),
		DstIP:    dst.AsSlice(),
	}
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload(icmpMsg)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

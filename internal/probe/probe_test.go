package probe

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/tkjaer/esweep/internal/probe/probetest"
)

func newTestProber(t *testing.T, network *probetest.Network, clock *probetest.Clock, seq *Sequence, timeout time.Duration) (*Prober, *probetest.Socket) {
	t.Helper()
	sock, err := network.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return NewProber(sock, seq, Config{Timeout: timeout, Clock: clock.Now}), sock
}

func TestSequence_Next(t *testing.T) {
	var seq Sequence
	for want := uint16(1); want <= 3; want++ {
		if got := seq.Next(); got != want {
			t.Errorf("Next() = %d, want %d", got, want)
		}
	}

	// Wraps at 16 bits
	seq.n.Store(0xffff)
	if got := seq.Next(); got != 0 {
		t.Errorf("Next() after 0xffff = %d, want 0", got)
	}
}

func TestProber_PingMatchingReply(t *testing.T) {
	clock := probetest.NewClock()
	network := probetest.NewNetwork(clock)
	host := netip.MustParseAddr("192.0.2.1")
	network.AddHost(host, 5*time.Millisecond)

	p, _ := newTestProber(t, network, clock, new(Sequence), 100*time.Millisecond)

	rtt, err := p.Ping(host)
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if rtt != 5*time.Millisecond {
		t.Errorf("Ping() = %v, want 5ms", rtt)
	}
}

func TestProber_PingTimeout(t *testing.T) {
	clock := probetest.NewClock()
	network := probetest.NewNetwork(clock)

	p, _ := newTestProber(t, network, clock, new(Sequence), 100*time.Millisecond)

	_, err := p.Ping(netip.MustParseAddr("192.0.2.2"))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Ping() error = %v, want ErrTimeout", err)
	}
}

func TestProber_ReplyAfterDeadline(t *testing.T) {
	clock := probetest.NewClock()
	network := probetest.NewNetwork(clock)
	host := netip.MustParseAddr("192.0.2.3")
	network.AddHost(host, 250*time.Millisecond)

	p, _ := newTestProber(t, network, clock, new(Sequence), 100*time.Millisecond)

	_, err := p.Ping(host)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Ping() error = %v, want ErrTimeout", err)
	}
}

func TestProber_SkipsStaleReplies(t *testing.T) {
	clock := probetest.NewClock()
	network := probetest.NewNetwork(clock)
	host := netip.MustParseAddr("192.0.2.4")
	other := netip.MustParseAddr("192.0.2.99")
	network.AddHost(host, 7*time.Millisecond)

	p, sock := newTestProber(t, network, clock, new(Sequence), 100*time.Millisecond)

	// The next request carries sequence 1.
	stale := []struct {
		name string
		id   uint16
		seq  uint16
		from netip.Addr
	}{
		{"previous sequence", EchoID, 0, host},
		{"foreign identifier", 0x1234, 1, host},
		{"other host", EchoID, 1, other},
	}
	for _, s := range stale {
		reply, err := probetest.EchoReply(s.id, s.seq, echoPayload())
		if err != nil {
			t.Fatalf("%s: EchoReply() error = %v", s.name, err)
		}
		sock.Inject(reply, s.from)
	}
	// Garbage that does not decode at all
	sock.Inject([]byte{0x08, 0x00}, host)

	rtt, err := p.Ping(host)
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if rtt != 7*time.Millisecond {
		t.Errorf("Ping() = %v, want 7ms", rtt)
	}
}

func TestProber_SendError(t *testing.T) {
	clock := probetest.NewClock()
	network := probetest.NewNetwork(clock)
	host := netip.MustParseAddr("192.0.2.5")
	network.SetUnreachable(host)

	p, _ := newTestProber(t, network, clock, new(Sequence), 100*time.Millisecond)

	_, err := p.Ping(host)
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Errorf("Ping() error = %v, want send error", err)
	}
}

func TestProber_RejectsIPv6Target(t *testing.T) {
	clock := probetest.NewClock()
	network := probetest.NewNetwork(clock)

	p, _ := newTestProber(t, network, clock, new(Sequence), 100*time.Millisecond)

	if err := p.Send(netip.MustParseAddr("2001:db8::1")); err == nil {
		t.Error("Send() to IPv6 target should fail")
	}
	if len(network.Probed()) != 0 {
		t.Errorf("Probed() = %v, want nothing sent", network.Probed())
	}
}

func TestProber_SharedSequence(t *testing.T) {
	clock := probetest.NewClock()
	network := probetest.NewNetwork(clock)
	seq := new(Sequence)

	p1, _ := newTestProber(t, network, clock, seq, 10*time.Millisecond)
	p2, _ := newTestProber(t, network, clock, seq, 10*time.Millisecond)

	target := netip.MustParseAddr("192.0.2.6")
	for _, p := range []*Prober{p1, p2, p1} {
		if err := p.Send(target); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if p1.lastSeq != 3 || p2.lastSeq != 2 {
		t.Errorf("lastSeq = (%d, %d), want (3, 2)", p1.lastSeq, p2.lastSeq)
	}
}

func TestNewProber_Defaults(t *testing.T) {
	p := NewProber(nil, new(Sequence), Config{Timeout: time.Second})
	if p.id != EchoID {
		t.Errorf("id = %#x, want %#x", p.id, EchoID)
	}
	if p.now == nil {
		t.Error("now should default to time.Now")
	}
}

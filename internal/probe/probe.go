package probe

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
)

// EchoID is the identifier carried by every echo request we send.
const EchoID = 0xAFAF

// ErrTimeout is returned by Receive when no matching reply arrived before the deadline.
var ErrTimeout = errors.New("no reply within timeout")

// errMismatch marks a reply that belongs to another request.
var errMismatch = errors.New("reply does not match last request")

// Socket is the raw ICMP socket surface a Prober needs. *icmp.PacketConn satisfies it.
type Socket interface {
	WriteTo(b []byte, dst net.Addr) (int, error)
	ReadFrom(b []byte) (int, net.Addr, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Sequence hands out echo sequence numbers. One Sequence is shared by every
// prober of a scanner and is never reset.
type Sequence struct {
	n atomic.Uint32
}

// Next returns the next sequence number, wrapping at 16 bits.
func (s *Sequence) Next() uint16 {
	return uint16(s.n.Add(1))
}

// Config holds the settings for a single prober
type Config struct {
	Timeout time.Duration
	ID      uint16           // defaults to EchoID
	Clock   func() time.Time // defaults to time.Now
}

// Prober performs one echo exchange at a time on a socket it does not own.
type Prober struct {
	conn    Socket
	seq     *Sequence
	id      uint16
	timeout time.Duration
	now     func() time.Time

	buf  gopacket.SerializeBuffer
	recv []byte

	// State of the most recently sent request
	target  netip.Addr
	lastSeq uint16
	sentAt  time.Time
}

// NewProber creates a prober sending on conn and drawing sequence numbers from seq.
func NewProber(conn Socket, seq *Sequence, cfg Config) *Prober {
	p := &Prober{
		conn:    conn,
		seq:     seq,
		id:      cfg.ID,
		timeout: cfg.Timeout,
		now:     cfg.Clock,
		buf:     gopacket.NewSerializeBuffer(),
		recv:    make([]byte, maxReplySize),
	}
	if p.id == 0 {
		p.id = EchoID
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Send transmits one echo request to target.
func (p *Prober) Send(target netip.Addr) error {
	if !target.Is4() {
		return fmt.Errorf("target %v is not an IPv4 address", target)
	}
	seq := p.seq.Next()
	if err := encodeEchoRequest(p.buf, p.id, seq); err != nil {
		return fmt.Errorf("failed to encode echo request: %w", err)
	}

	p.target = target
	p.lastSeq = seq
	p.sentAt = p.now()

	if _, err := p.conn.WriteTo(p.buf.Bytes(), &net.IPAddr{IP: target.AsSlice()}); err != nil {
		return fmt.Errorf("failed to send echo request to %v: %w", target, err)
	}
	return nil
}

// Receive waits for the reply to the last request and returns the round-trip time.
// Replies to other requests are skipped without extending the deadline.
func (p *Prober) Receive() (time.Duration, error) {
	if err := p.conn.SetReadDeadline(p.sentAt.Add(p.timeout)); err != nil {
		return 0, fmt.Errorf("failed to set read deadline: %w", err)
	}

	for {
		n, from, err := p.conn.ReadFrom(p.recv)
		if err != nil {
			if isTimeout(err) {
				return 0, ErrTimeout
			}
			return 0, err
		}
		if n == 0 {
			return 0, ErrTimeout
		}

		if err := p.match(p.recv[:n], from); err != nil {
			slog.Debug("Dropped reply", "target", p.target, "seq", p.lastSeq, "reason", err)
			continue
		}
		return p.now().Sub(p.sentAt), nil
	}
}

// Ping sends one request to target and waits for its reply.
func (p *Prober) Ping(target netip.Addr) (time.Duration, error) {
	if err := p.Send(target); err != nil {
		return 0, err
	}
	return p.Receive()
}

func (p *Prober) match(data []byte, from net.Addr) error {
	reply, err := decodeEchoReply(data)
	if err != nil {
		return err
	}
	if reply.Id != p.id || reply.Seq != p.lastSeq {
		return errMismatch
	}
	if ipAddr, ok := from.(*net.IPAddr); ok {
		if addr, ok := netip.AddrFromSlice(ipAddr.IP); ok && addr.Unmap() != p.target {
			return errMismatch
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

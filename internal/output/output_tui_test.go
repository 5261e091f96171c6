package output

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tkjaer/esweep/internal/shared"
)

func newTestModel() *tuiModel {
	m := newTUIModel(shared.OutputInfo{Network: "192.168.1.0/24", Workers: 4, Timeout: 100 * time.Millisecond},
		make(chan tea.Msg, 10), make(chan struct{}, 1))
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		ms   int8
		want string
	}{
		{-1, "-"},
		{0, "0"},
		{42, "42"},
		{100, ">=100"},
	}

	for _, tt := range tests {
		if got := formatLatency(tt.ms); got != tt.want {
			t.Errorf("formatLatency(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "never"},
		{"just now", now.Add(-200 * time.Millisecond), "now"},
		{"seconds", now.Add(-42 * time.Second), "42s ago"},
		{"minutes", now.Add(-5*time.Minute - 10*time.Second), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatAgo(now, tt.t); got != tt.want {
				t.Errorf("formatAgo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTUIModel_ScanUpdatesRows(t *testing.T) {
	m := newTestModel()
	start := m.now().Add(-10 * time.Second)

	m.Update(scanMsg{report: &shared.ScanReport{
		Start: start,
		Hosts: []shared.HostResult{
			{Octet: 20, IP: "192.168.1.20", Latency: 12},
			{Octet: 3, IP: "192.168.1.3", Latency: 1, PTR: "router.lan"},
		},
	}})

	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %v, want 2", rows)
	}
	want := []string{"192.168.1.3", "router.lan", "1", "1", "10s ago", "down"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("row 0 cell %d = %q, want %q", i, rows[0][i], cell)
		}
	}
	if rows[1][0] != "192.168.1.20" {
		t.Errorf("row 1 host = %q, want 192.168.1.20", rows[1][0])
	}

	// A host silent in the next sweep keeps its row with no latency
	m.Update(scanMsg{report: &shared.ScanReport{
		Start: start,
		Hosts: []shared.HostResult{{Octet: 20, IP: "192.168.1.20", Latency: 15}},
	}})
	rows = m.table.Rows()
	if rows[0][2] != "-" || rows[0][3] != "1" {
		t.Errorf("silent host row = %v, want latency - and seen 1", rows[0])
	}
	if rows[1][2] != "15" || rows[1][3] != "2" {
		t.Errorf("responsive host row = %v, want latency 15 and seen 2", rows[1])
	}
	if m.scans != 2 {
		t.Errorf("scans = %d, want 2", m.scans)
	}
}

func TestTUIModel_HostChange(t *testing.T) {
	m := newTestModel()
	ip := netip.MustParseAddr("192.168.1.50")

	m.Update(hostChangeMsg{event: shared.PresenceEvent{IP: ip, State: shared.HostUp, PTR: "tv.lan"}})
	rows := m.table.Rows()
	if len(rows) != 1 || rows[0][5] != "up" || rows[0][1] != "tv.lan" {
		t.Fatalf("rows after up = %v", rows)
	}

	m.Update(hostChangeMsg{event: shared.PresenceEvent{IP: ip, State: shared.HostDown}})
	if rows := m.table.Rows(); rows[0][5] != "down" || rows[0][1] != "tv.lan" {
		t.Errorf("rows after down = %v", rows)
	}
}

func TestTUIModel_Quit(t *testing.T) {
	m := newTestModel()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key should return tea.Quit")
	}
	select {
	case <-m.quitCh:
	default:
		t.Error("quit key should signal the quit channel")
	}
}

func TestTUIModel_View(t *testing.T) {
	m := newTestModel()
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() before size = %q", got)
	}

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := m.View()
	if !strings.Contains(view, "192.168.1.0/24") || !strings.Contains(view, "Waiting for first sweep") {
		t.Errorf("View() missing title or status:\n%s", view)
	}

	m.Update(scanMsg{report: &shared.ScanReport{
		Probed:     254,
		Responsive: 1,
		Hosts:      []shared.HostResult{{Octet: 1, IP: "192.168.1.1", Latency: 60}},
	}})
	if view := m.View(); !strings.Contains(view, "1/254 responsive") {
		t.Errorf("View() missing sweep status:\n%s", view)
	}
}

func TestBubbleTUIOutput_DropsWhenFull(t *testing.T) {
	b := NewBubbleTUIOutput(shared.OutputInfo{})
	for range cap(b.updateCh) + 5 {
		b.CompleteScan(&shared.ScanReport{})
	}
	if len(b.updateCh) != cap(b.updateCh) {
		t.Errorf("queued %d updates, want %d", len(b.updateCh), cap(b.updateCh))
	}
	// Closing a TUI that never started is a no-op
	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

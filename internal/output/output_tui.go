package output

import (
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tkjaer/esweep/internal/shared"
)

// BubbleTUIOutput shows a live host table using Bubble Tea
type BubbleTUIOutput struct {
	mu       sync.Mutex
	program  *tea.Program
	model    *tuiModel
	updateCh chan tea.Msg
	quitCh   chan struct{}
	doneCh   chan struct{}
}

// scanMsg is sent when a sweep completes
type scanMsg struct {
	report *shared.ScanReport
}

// hostChangeMsg is sent when a host appears or disappears
type hostChangeMsg struct {
	event shared.PresenceEvent
}

// tickMsg is sent periodically to refresh the display
type tickMsg time.Time

// hostRow is everything the table knows about one host
type hostRow struct {
	ip       netip.Addr
	ptr      string
	latency  int8 // latency in the last sweep, -1 when silent
	seen     uint // number of sweeps the host answered
	lastSeen time.Time
	present  bool
}

// tuiModel holds the Bubble Tea model state
type tuiModel struct {
	info      shared.OutputInfo
	startTime time.Time
	now       func() time.Time

	hosts      map[netip.Addr]*hostRow
	scans      uint
	lastReport *shared.ScanReport

	// UI state
	width  int
	height int
	table  table.Model
	help   help.Model
	keys   keyMap

	// Channel for receiving updates
	updateCh chan tea.Msg
	quitCh   chan struct{}
}

// keyMap defines keyboard shortcuts
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Quit   key.Binding
	Help   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Quit, k.Help},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	Top: key.NewBinding(
		key.WithKeys("home", "g"),
		key.WithHelp("g", "first host"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("end", "G"),
		key.WithHelp("G", "last host"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	statsGoodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399"))

	statsWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FBBF24"))

	statsBadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

var tableColumns = []table.Column{
	{Title: "Host", Width: 15},
	{Title: "Name", Width: 28},
	{Title: "Last ms", Width: 7},
	{Title: "Seen", Width: 6},
	{Title: "Last seen", Width: 10},
	{Title: "State", Width: 5},
}

// NewBubbleTUIOutput creates a new Bubble Tea TUI output
func NewBubbleTUIOutput(info shared.OutputInfo) *BubbleTUIOutput {
	updateCh := make(chan tea.Msg, 100)
	quitCh := make(chan struct{})

	return &BubbleTUIOutput{
		model:    newTUIModel(info, updateCh, quitCh),
		updateCh: updateCh,
		quitCh:   quitCh,
	}
}

func newTUIModel(info shared.OutputInfo, updateCh chan tea.Msg, quitCh chan struct{}) *tuiModel {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("#FBBF24"))
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#5A67D8"))

	return &tuiModel{
		info:      info,
		startTime: time.Now(),
		now:       time.Now,
		hosts:     make(map[netip.Addr]*hostRow),
		table: table.New(
			table.WithColumns(tableColumns),
			table.WithFocused(true),
			table.WithStyles(styles),
		),
		help:     help.New(),
		keys:     keys,
		updateCh: updateCh,
		quitCh:   quitCh,
	}
}

// Start initializes and starts the Bubble Tea program
func (b *BubbleTUIOutput) Start() {
	doneCh := make(chan struct{})
	program := tea.NewProgram(b.model, tea.WithAltScreen())

	b.mu.Lock()
	b.doneCh = doneCh
	b.program = program
	b.mu.Unlock()

	go func() {
		// Ensure cleanup happens even if there's a panic
		defer func() {
			close(doneCh)
			if r := recover(); r != nil {
				slog.Error("TUI panic", "panic", r)
				program.Kill()
			}
		}()

		if _, err := program.Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
		}
	}()
}

// QuitChan returns the channel that signals when the user quits the TUI
func (b *BubbleTUIOutput) QuitChan() <-chan struct{} {
	return b.quitCh
}

func (b *BubbleTUIOutput) send(msg tea.Msg) {
	select {
	case b.updateCh <- msg:
	default:
		// Channel full, skip update
	}
}

// CompleteScan implements the Output interface
func (b *BubbleTUIOutput) CompleteScan(report *shared.ScanReport) {
	b.send(scanMsg{report: report})
}

// HostChange implements the Output interface
func (b *BubbleTUIOutput) HostChange(event shared.PresenceEvent) {
	b.send(hostChangeMsg{event: event})
}

// Close implements the Output interface
func (b *BubbleTUIOutput) Close() error {
	b.mu.Lock()
	program := b.program
	doneCh := b.doneCh
	b.program = nil
	b.doneCh = nil
	b.mu.Unlock()

	if program != nil {
		// Request graceful shutdown
		program.Quit()

		select {
		case <-doneCh:
		case <-time.After(500 * time.Millisecond):
			// Force cleanup if it takes too long
			program.Kill()
			<-doneCh
		}
	}
	return nil
}

// Init is the initial I/O for Bubble Tea
func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForUpdate(m.updateCh),
	)
}

// Update handles messages and updates the model
func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			// Signal quit to the main program
			select {
			case m.quitCh <- struct{}{}:
			default:
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize()
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.table.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.table.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()

	case scanMsg:
		m.applyScan(msg.report)
		return m, waitForUpdate(m.updateCh)

	case hostChangeMsg:
		m.applyHostChange(msg.event)
		return m, waitForUpdate(m.updateCh)

	case tickMsg:
		m.table.SetRows(m.rows())
		return m, tickCmd()
	}

	return m, nil
}

func (m *tuiModel) applyScan(report *shared.ScanReport) {
	m.scans++
	m.lastReport = report
	for _, row := range m.hosts {
		row.latency = -1
	}
	for _, h := range report.Hosts {
		ip, err := netip.ParseAddr(h.IP)
		if err != nil {
			continue
		}
		row := m.host(ip)
		row.latency = h.Latency
		row.seen++
		row.lastSeen = report.Start
		if h.PTR != "" {
			row.ptr = h.PTR
		}
	}
	m.table.SetRows(m.rows())
}

func (m *tuiModel) applyHostChange(event shared.PresenceEvent) {
	row := m.host(event.IP)
	row.present = event.State == shared.HostUp
	if event.PTR != "" {
		row.ptr = event.PTR
	}
	m.table.SetRows(m.rows())
}

func (m *tuiModel) host(ip netip.Addr) *hostRow {
	row, ok := m.hosts[ip]
	if !ok {
		row = &hostRow{ip: ip, latency: -1}
		m.hosts[ip] = row
	}
	return row
}

// rows renders the host table sorted by address
func (m *tuiModel) rows() []table.Row {
	hosts := make([]*hostRow, 0, len(m.hosts))
	for _, h := range m.hosts {
		hosts = append(hosts, h)
	}
	slices.SortFunc(hosts, func(a, b *hostRow) int { return a.ip.Compare(b.ip) })

	now := m.now()
	rows := make([]table.Row, 0, len(hosts))
	for _, h := range hosts {
		state := "down"
		if h.present {
			state = "up"
		}
		rows = append(rows, table.Row{
			h.ip.String(),
			h.ptr,
			formatLatency(h.latency),
			strconv.FormatUint(uint64(h.seen), 10),
			formatAgo(now, h.lastSeen),
			state,
		})
	}
	return rows
}

func (m *tuiModel) resize() {
	if m.width == 0 {
		return
	}
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	// title + status + border + help
	m.table.SetHeight(max(m.height-4-helpHeight, 3))
	m.table.SetWidth(max(m.width-2, 10))
}

// View renders the UI
func (m *tuiModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var b strings.Builder

	// Title bar
	elapsed := time.Since(m.startTime)
	title := fmt.Sprintf(" ICMP sweep of %s | Workers: %d | Timeout: %s | Elapsed: %s ",
		m.info.Network, m.info.Workers, m.info.Timeout, elapsed.Round(time.Second))
	b.WriteString(titleStyle.Width(m.width).Render(title))
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")

	b.WriteString(borderStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m *tuiModel) statusLine() string {
	if m.lastReport == nil {
		return statusStyle.Render("Waiting for first sweep...")
	}
	r := m.lastReport
	present := 0
	for _, h := range m.hosts {
		if h.present {
			present++
		}
	}
	var slowest int8
	for _, h := range r.Hosts {
		slowest = max(slowest, h.Latency)
	}
	line := fmt.Sprintf("Sweep %d: %d/%d responsive in %s | %d present | slowest ",
		m.scans, r.Responsive, r.Probed, r.Duration.Round(time.Millisecond), present)
	return statusStyle.Render(line) + latencyStyle(slowest).Render(formatLatency(slowest)+" ms")
}

// formatLatency renders a latency in milliseconds, "-" for a silent host
func formatLatency(ms int8) string {
	if ms < 0 {
		return "-"
	}
	if ms >= 100 {
		return ">=100"
	}
	return strconv.Itoa(int(ms))
}

// formatAgo renders how long ago t was, rounded for display
func formatAgo(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

func latencyStyle(ms int8) lipgloss.Style {
	switch {
	case ms > 50:
		return statsBadStyle
	case ms > 20:
		return statsWarningStyle
	default:
		return statsGoodStyle
	}
}

// waitForUpdate waits for the next update message
func waitForUpdate(updateCh chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-updateCh
	}
}

// tickCmd returns a command that sends a tick message periodically
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

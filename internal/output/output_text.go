package output

import (
	"bufio"
	"io"
	"strconv"
	"sync"

	"github.com/tkjaer/esweep/internal/shared"
)

// TextOutput prints "<octet>: <latency>" for every responsive host, then "scan done"
type TextOutput struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewTextOutput(w io.Writer) *TextOutput {
	return &TextOutput{w: bufio.NewWriter(w)}
}

func (t *TextOutput) CompleteScan(report *shared.ScanReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, h := range report.Hosts {
		t.w.WriteString(strconv.Itoa(int(h.Octet)))
		t.w.WriteString(": ")
		t.w.WriteString(strconv.Itoa(int(h.Latency)))
		if h.PTR != "" {
			t.w.WriteString(" (" + h.PTR + ")")
		}
		t.w.WriteByte('\n')
	}
	t.w.WriteString("scan done\n")
	t.w.Flush()
}

func (t *TextOutput) HostChange(event shared.PresenceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.w.WriteString(event.IP.String() + " " + string(event.State) + "\n")
	t.w.Flush()
}

func (t *TextOutput) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Flush()
}

package output

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tkjaer/esweep/internal/shared"
)

// JSONOutput writes one scan report per line to a file or stdout
type JSONOutput struct {
	mu       sync.Mutex
	file     io.WriteCloser
	enc      *json.Encoder
	toStdout bool
}

func NewJSONOutput(filename string) (*JSONOutput, error) {
	if filename == "" {
		// Output to stdout
		return NewJSONStream(os.Stdout), nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &JSONOutput{
		file:     f,
		enc:      json.NewEncoder(f),
		toStdout: false,
	}, nil
}

// NewJSONStream writes reports to w, which is left open on Close
func NewJSONStream(w io.Writer) *JSONOutput {
	return &JSONOutput{
		file:     nopCloser{w},
		enc:      json.NewEncoder(w),
		toStdout: true,
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func (j *JSONOutput) CompleteScan(report *shared.ScanReport) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.enc.Encode(report); err != nil {
		slog.Warn("Failed to write JSON report", "scan_id", report.ScanID, "error", err)
	}
}

func (j *JSONOutput) HostChange(event shared.PresenceEvent) {
	// No-op for JSON, presence can be derived from consecutive reports
}

func (j *JSONOutput) Close() error {
	if j.toStdout {
		return nil
	}
	return j.file.Close()
}

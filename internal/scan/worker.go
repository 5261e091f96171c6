package scan

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tkjaer/esweep/internal/probe"
)

// Opener opens the raw socket a worker probes with.
type Opener func() (probe.Socket, error)

// Worker probes the hosts of one task.
type Worker struct {
	task  *Task
	open  Opener
	seq   *probe.Sequence
	clock func() time.Time
}

// Run probes every host of the task in increasing octet order and marks the task
// done when finished, whatever happened.
func (w *Worker) Run() {
	t := w.task
	defer t.finish()

	if t.empty() {
		slog.Debug("Worker has no hosts to probe", "worker", t.Index, "start", t.Range.Start)
		return
	}

	conn, err := w.open()
	if err != nil {
		slog.Warn("Worker failed to open socket", "worker", t.Index, "error", err)
		return
	}
	defer conn.Close()

	p := probe.NewProber(conn, w.seq, probe.Config{
		Timeout: t.Timeout,
		Clock:   w.clock,
	})

	for octet := t.Range.Start; octet < t.Range.End(); octet++ {
		if octet > LastHost {
			break
		}
		target := HostAddr(t.Base, uint8(octet))

		rtt, err := p.Ping(target)
		if err != nil {
			if !errors.Is(err, probe.ErrTimeout) {
				slog.Debug("Probe failed", "worker", t.Index, "target", target, "error", err)
			}
			continue
		}

		latency := clampLatency(rtt)
		slog.Debug("Host replied", "worker", t.Index, "octet", octet, "latency_ms", latency)
		t.Results[octet-t.Range.Start] = latency
	}
}

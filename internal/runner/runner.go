// Package runner drives repeated sweeps: it waits for the network, resolves
// what to sweep, runs the scanner and fans the results out to every output.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tkjaer/esweep/internal/config"
	"github.com/tkjaer/esweep/internal/gate"
	"github.com/tkjaer/esweep/internal/output"
	"github.com/tkjaer/esweep/internal/presence"
	"github.com/tkjaer/esweep/internal/scan"
	"github.com/tkjaer/esweep/internal/server"
	"github.com/tkjaer/esweep/internal/shared"
	"github.com/tkjaer/esweep/pkg/iface"
	"github.com/tkjaer/esweep/pkg/ptr"
	"github.com/tkjaer/esweep/pkg/route"
)

const (
	gatePoll     = 250 * time.Millisecond
	pollFallback = time.Second
	ptrLookups   = 16
)

// Variables for mocking in tests
var (
	newGate         = gate.New
	defaultNetwork  = route.DefaultNetwork
	interfaceFor    = route.InterfaceFor
	interfaceByName = net.InterfaceByName
)

// Runner sweeps one /24 until its sweep count is reached or it is stopped
type Runner struct {
	// Coordination
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once

	args    config.Args
	network netip.Prefix
	iface   string

	scanner *scan.Scanner
	result  scan.Result
	tracker *presence.Tracker
	store   *server.Store
	resolve func(ips []string) map[string]string

	stdout io.Writer
	now    func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithScanner replaces the raw socket scanner.
func WithScanner(s *scan.Scanner) Option {
	return func(r *Runner) {
		r.scanner = s
	}
}

// WithStdout replaces the writer used by the json and text outputs.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) {
		r.stdout = w
	}
}

func NewRunner(args config.Args, opts ...Option) *Runner {
	pm := ptr.NewPtrManager()
	r := &Runner{
		stop:    make(chan struct{}),
		args:    args,
		network: args.Network,
		iface:   args.Interface,
		result:  scan.NewResult(),
		tracker: presence.NewTracker(args.PresenceTTL),
		store:   &server.Store{},
		resolve: func(ips []string) map[string]string {
			return pm.ResolveAll(ips, ptrLookups)
		},
		stdout: os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scanner == nil {
		r.scanner = scan.NewScanner()
	}
	return r
}

// Run waits for the link, then sweeps until the count is reached or Stop is called.
func (r *Runner) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer r.wg.Wait()
	defer cancel()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, err := r.joinNetwork(ctx)
	if err != nil {
		return err
	}
	defer g.Close()

	if err := r.resolveTarget(); err != nil {
		return err
	}

	tui, om, metrics, err := r.createOutputs()
	if err != nil {
		return err
	}
	defer func() {
		if err := om.Close(); err != nil {
			slog.Warn("Failed to close outputs", "error", err)
		}
	}()

	if tui != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			select {
			case <-tui.QuitChan():
				slog.Debug("User quit TUI, stopping sweeps")
				r.signalStop()
			case <-ctx.Done():
			}
		}()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	if r.args.Listen != "" {
		srv := server.New(r.store, r.tracker, metrics.Registry())
		eg.Go(func() error {
			return srv.ListenAndServe(egCtx, r.args.Listen)
		})
	}
	eg.Go(func() error {
		// Sweeps ending, for any reason, shut the status server down
		defer cancel()
		return r.loop(egCtx, om)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Debug("Sweeps finished")
	return nil
}

// Stop asks Run to return after the sweep in progress.
func (r *Runner) Stop() {
	r.signalStop()
}

func (r *Runner) signalStop() {
	r.stopOnce.Do(func() {
		slog.Debug("Stopping runner")
		close(r.stop)
	})
}

// joinNetwork connects the gate and waits up to LinkWait for the link.
func (r *Runner) joinNetwork(ctx context.Context) (gate.Gate, error) {
	g := newGate(r.iface)
	if err := g.Connect(ctx); err != nil {
		slog.Warn("Link events unavailable, polling instead", "error", err)
		_ = g.Close()
		g = gate.NewPollingGate(r.iface, pollFallback)
		if err := g.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to watch link: %w", err)
		}
	}

	waitCtx := ctx
	if r.args.LinkWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.args.LinkWait)
		defer cancel()
	}
	slog.Info("Waiting for link", "interface", r.iface, "timeout", r.args.LinkWait)
	if err := gate.WaitConnected(waitCtx, g, gatePoll); err != nil {
		_ = g.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("link not up after %v", r.args.LinkWait)
		}
		return nil, fmt.Errorf("waiting for link: %w", err)
	}
	return g, nil
}

// resolveTarget fills in the network and interface that were not given.
func (r *Runner) resolveTarget() error {
	if !r.network.IsValid() {
		network, err := defaultNetwork()
		if err != nil {
			return fmt.Errorf("no network given and none derived: %w", err)
		}
		r.network = network
		slog.Info("Using default gateway network", "network", network)
	}

	if r.iface == "" {
		name, err := interfaceFor(r.network)
		if err != nil {
			slog.Warn("No route towards network", "network", r.network, "error", err)
			return nil
		}
		r.iface = name
	}

	ifi, err := interfaceByName(r.iface)
	if err != nil {
		slog.Warn("Interface not found", "interface", r.iface, "error", err)
		return nil
	}
	slog.Info("Sweeping", "network", r.network, "interface", ifi.Name, "kind", iface.Kind(ifi))
	if !iface.IsLAN(ifi) {
		slog.Warn("Interface does not look like a LAN, replies may be missing", "interface", ifi.Name)
	}
	return nil
}

// loop runs the sweeps, honouring stop requests only between them.
func (r *Runner) loop(ctx context.Context, om *output.OutputManager) error {
	for n := uint(0); r.args.Count == 0 || n < r.args.Count; n++ {
		if n > 0 && !r.wait(ctx, r.args.Interval) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		report, err := r.sweep(n)
		if err != nil {
			return err
		}
		om.CompleteScan(report)
		for _, event := range r.tracker.Update(report) {
			om.HostChange(event)
		}
	}
	return nil
}

// wait sleeps for d and reports whether sweeping should continue.
func (r *Runner) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// sweep scans the network once and builds its report.
func (r *Runner) sweep(num uint) (*shared.ScanReport, error) {
	base := r.network.Addr()
	start := r.now()
	if err := r.scanner.ScanInto(&r.result, base, r.args.Timeout, r.args.Workers); err != nil {
		return nil, fmt.Errorf("sweep %d of %v: %w", num, r.network, err)
	}

	responsive := r.result.Responsive()
	report := &shared.ScanReport{
		ScanID:     uuid.NewString(),
		ScanNum:    num,
		Network:    r.network.String(),
		Workers:    r.args.Workers,
		Timeout:    r.args.Timeout,
		Start:      start,
		Duration:   r.now().Sub(start),
		Probed:     scan.LastHost - scan.FirstHost + 1,
		Responsive: len(responsive),
		Hosts:      make([]shared.HostResult, 0, len(responsive)),
	}

	ips := make([]string, 0, len(responsive))
	for _, h := range responsive {
		ip := scan.HostAddr(base, h.Octet).String()
		ips = append(ips, ip)
		report.Hosts = append(report.Hosts, shared.HostResult{
			Octet:   h.Octet,
			IP:      ip,
			Latency: h.Latency,
		})
	}

	if !r.args.NoResolve && len(ips) > 0 {
		names := r.resolve(ips)
		for i := range report.Hosts {
			report.Hosts[i].PTR = names[report.Hosts[i].IP]
		}
	}

	slog.Debug("Sweep complete", "scan", num, "responsive", report.Responsive, "duration", report.Duration)
	return report, nil
}

// createOutputs creates and initializes output handlers.
// Returns the BubbleTUIOutput instance (may be nil), the OutputManager and the metrics output.
func (r *Runner) createOutputs() (*output.BubbleTUIOutput, *output.OutputManager, *output.MetricsOutput, error) {
	om := &output.OutputManager{}

	info := shared.OutputInfo{
		Network:  r.network.String(),
		Workers:  r.args.Workers,
		Timeout:  r.args.Timeout,
		Interval: r.args.Interval,
		Count:    r.args.Count,
	}

	var bubbleTUI *output.BubbleTUIOutput
	switch r.args.OutputMode() {
	case "json":
		om.Register(output.NewJSONStream(r.stdout))
	case "text":
		om.Register(output.NewTextOutput(r.stdout))
	default:
		bubbleTUI = output.NewBubbleTUIOutput(info)
		bubbleTUI.Start()
		om.Register(bubbleTUI)
	}

	if r.args.JsonFile != "" {
		jsonOut, err := output.NewJSONOutput(r.args.JsonFile)
		if err != nil {
			_ = om.Close()
			return nil, nil, nil, err
		}
		om.Register(jsonOut)
	}

	if r.args.MQTTBroker != "" {
		mqttOut, err := output.NewMQTTOutput(r.args.MQTTBroker, r.args.MQTTTopic, r.args.MQTTClient)
		if err != nil {
			_ = om.Close()
			return nil, nil, nil, err
		}
		om.Register(mqttOut)
	}

	var metrics *output.MetricsOutput
	if r.args.Listen != "" {
		metrics = output.NewMetricsOutput()
		om.Register(metrics)
		om.Register(r.store)
	}

	return bubbleTUI, om, metrics, nil
}

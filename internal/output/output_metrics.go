package output

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tkjaer/esweep/internal/shared"
)

// MetricsOutput exposes sweep results as Prometheus metrics
type MetricsOutput struct {
	registry *prometheus.Registry

	scansTotal      prometheus.Counter
	lastScanTime    prometheus.Gauge
	scanDuration    prometheus.Gauge
	responsiveHosts prometheus.Gauge
	hostLatency     *prometheus.GaugeVec
	hostPresent     *prometheus.GaugeVec
	presenceChanges *prometheus.CounterVec
}

func NewMetricsOutput() *MetricsOutput {
	m := &MetricsOutput{
		registry: prometheus.NewRegistry(),
		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esweep_scans_total",
			Help: "Total number of completed sweeps",
		}),
		lastScanTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "esweep_last_scan_timestamp_seconds",
			Help: "Start time of the last completed sweep",
		}),
		scanDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "esweep_last_scan_duration_seconds",
			Help: "Duration of the last completed sweep",
		}),
		responsiveHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "esweep_responsive_hosts",
			Help: "Number of hosts that answered the last sweep",
		}),
		hostLatency: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "esweep_host_latency_ms",
				Help: "Round-trip time of each responsive host in the last sweep, in milliseconds (capped at 100)",
			},
			[]string{"network", "ip", "ptr"},
		),
		hostPresent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "esweep_host_present",
				Help: "Whether a host is considered present (1 = present, 0 = gone)",
			},
			[]string{"ip"},
		),
		presenceChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esweep_presence_changes_total",
				Help: "Total number of hosts appearing or disappearing",
			},
			[]string{"state"},
		),
	}

	m.registry.MustRegister(
		m.scansTotal,
		m.lastScanTime,
		m.scanDuration,
		m.responsiveHosts,
		m.hostLatency,
		m.hostPresent,
		m.presenceChanges,
	)
	return m
}

// Registry returns the registry holding the sweep metrics
func (m *MetricsOutput) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsOutput) CompleteScan(report *shared.ScanReport) {
	m.scansTotal.Inc()
	m.lastScanTime.Set(float64(report.Start.Unix()))
	m.scanDuration.Set(report.Duration.Seconds())
	m.responsiveHosts.Set(float64(report.Responsive))

	// Only hosts that answered this sweep keep a latency series
	m.hostLatency.Reset()
	for _, h := range report.Hosts {
		m.hostLatency.WithLabelValues(report.Network, h.IP, h.PTR).Set(float64(h.Latency))
	}
}

func (m *MetricsOutput) HostChange(event shared.PresenceEvent) {
	m.presenceChanges.WithLabelValues(string(event.State)).Inc()

	value := 0.0
	if event.State == shared.HostUp {
		value = 1.0
	}
	m.hostPresent.WithLabelValues(event.IP.String()).Set(value)
}

func (m *MetricsOutput) Close() error {
	return nil
}

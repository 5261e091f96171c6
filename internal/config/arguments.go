package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/tkjaer/esweep/internal/version"
	"golang.org/x/term"
)

type Args struct {
	// Network is the /24 to sweep, zero when it should be derived from the default gateway
	Network netip.Prefix

	// Sweep
	Workers  int
	Timeout  time.Duration
	Count    uint
	Interval time.Duration

	// Link
	Interface string
	LinkWait  time.Duration

	// Hosts
	NoResolve   bool
	PresenceTTL time.Duration

	// Output
	Json       bool   // output json to stdout
	JsonFile   string // output json to file while showing TUI
	Plain      bool   // plain text lines instead of the TUI
	Listen     string // status/metrics HTTP address, empty disables
	MQTTBroker string
	MQTTTopic  string
	MQTTClient string

	// Logging
	Log      string // log file path, empty means no logging
	LogLevel string // log level: debug, info, warn, error
}

// isTerminal reports whether stdout is a terminal. Variable for mocking in tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func ParseArgs() (Args, error) {
	var args Args
	var showVersion bool

	// Set custom usage message
	flag.Usage = func() {
		println("esweep - ICMP subnet sweeper")
		println()
		println("Waits for a link with an IPv4 address, then sweeps a /24 with ICMP echo probes")
		println("and reports which hosts answer and how fast.")
		println()
		println("Usage:")
		println("  esweep [OPTIONS] [NETWORK]")
		println()
		println("Examples:")
		println("  esweep                               # Sweep the default gateway's /24 once")
		println("  esweep 192.168.1.0/24                # Sweep a given /24")
		println("  esweep -c 0 -i 1m --plain            # Sweep every minute, plain text output")
		println("  esweep -J -w 8 10.0.0.0              # 8 workers, JSON to stdout")
		println("  esweep -c 0 --listen :9108 10.0.0.0  # Serve status and metrics")
		println()
		println("Options:")
		flag.PrintDefaults()
		println()
		println("Documentation: https://github.com/tkjaer/esweep")
		println("Report issues: https://github.com/tkjaer/esweep/issues")
	}

	flag.BoolVarP(&showVersion, "version", "v", false, "Show version information")
	flag.IntVarP(&args.Workers, "workers", "w", 4, "Number of concurrent probe workers (1-254)")
	flag.DurationVarP(&args.Timeout, "timeout", "t", 100*time.Millisecond, "Per-probe reply timeout")
	flag.UintVarP(&args.Count, "count", "c", 1, "Number of sweeps (0 = infinite)")
	flag.DurationVarP(&args.Interval, "interval", "i", 30*time.Second, "Delay between sweeps")
	flag.StringVarP(&args.Interface, "interface", "I", "", "Interface to wait for (default: interface routing towards the network)")
	flag.DurationVar(&args.LinkWait, "link-wait", 30*time.Second, "How long to wait for the link to come up (0 = forever)")
	flag.BoolVarP(&args.NoResolve, "no-resolve", "n", false, "Do not resolve IP addresses to hostnames")
	flag.DurationVar(&args.PresenceTTL, "presence-ttl", 5*time.Minute, "How long a silent host is still considered present")
	flag.StringVarP(&args.JsonFile, "json-file", "j", "", "Write JSON output to file (keeps TUI)")
	flag.BoolVarP(&args.Json, "json", "J", false, "Write JSON output to stdout (disables TUI)")
	flag.BoolVar(&args.Plain, "plain", false, "Write plain text lines instead of the TUI")
	flag.StringVar(&args.Listen, "listen", "", "Serve status API and metrics on this address (e.g. :9108)")
	flag.StringVar(&args.MQTTBroker, "mqtt-broker", "", "Publish results to this MQTT broker (e.g. tcp://localhost:1883)")
	flag.StringVar(&args.MQTTTopic, "mqtt-topic", "esweep", "MQTT topic prefix")
	flag.StringVar(&args.MQTTClient, "mqtt-client-id", "", "MQTT client ID (default: esweep-<hostname>)")
	flag.StringVarP(&args.Log, "log", "l", "", "Diagnostic log file (empty = no logging)")
	flag.StringVar(&args.LogLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.Parse()

	// Handle version flag
	if showVersion {
		fmt.Println(version.FullVersion())
		os.Exit(0)
	}

	if arg := flag.Arg(0); arg != "" {
		network, err := ParseNetwork(arg)
		if err != nil {
			return args, err
		}
		args.Network = network
	}

	switch {
	case args.Workers < 1 || args.Workers > 254:
		return args, errors.New("workers must be between 1 and 254")
	case args.Timeout < time.Millisecond:
		return args, errors.New("timeout must be at least 1ms")
	case args.Interval < 0:
		return args, errors.New("interval must not be negative")
	case args.LinkWait < 0:
		return args, errors.New("link wait must not be negative")
	case args.PresenceTTL <= 0:
		return args, errors.New("presence TTL must be positive")
	case args.Json && args.JsonFile != "":
		return args, errors.New("cannot use both --json and --json-file")
	case args.Json && args.Plain:
		return args, errors.New("cannot use both --json and --plain")
	case args.MQTTBroker != "" && args.MQTTTopic == "":
		return args, errors.New("MQTT topic must not be empty")
	}

	// Without a terminal there is nothing to draw the TUI on
	if !args.Json && !args.Plain && !isTerminal() {
		args.Plain = true
	}

	return args, nil
}

// ParseNetwork parses "a.b.c.d" or "a.b.c.d/24" into the /24 containing the address.
func ParseNetwork(s string) (netip.Prefix, error) {
	addrPart, bits, hasBits := strings.Cut(s, "/")
	if hasBits && bits != "24" {
		return netip.Prefix{}, fmt.Errorf("network %q: only /24 networks can be swept", s)
	}
	addr, err := netip.ParseAddr(addrPart)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("network %q: %w", s, err)
	}
	if !addr.Is4() {
		return netip.Prefix{}, fmt.Errorf("network %q: not an IPv4 address", s)
	}
	return netip.PrefixFrom(addr, 24).Masked(), nil
}

// OutputMode returns the name of the primary output mode
func (a Args) OutputMode() string {
	switch {
	case a.Json:
		return "json"
	case a.Plain:
		return "text"
	default:
		return "tui"
	}
}

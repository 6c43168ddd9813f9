package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/velemoonkon/portsweep/pkg/config"
	"github.com/velemoonkon/portsweep/pkg/input"
	"github.com/velemoonkon/portsweep/pkg/output"
	"github.com/velemoonkon/portsweep/pkg/ports"
	"github.com/velemoonkon/portsweep/pkg/rdns"
	"github.com/velemoonkon/portsweep/pkg/scanner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	// Input
	inputFile string

	// ICMP options
	icmpTimeout int
	icmpUDP     bool

	// Reverse DNS
	resolveNames bool

	// Output
	outputFile   string
	outputFormat string

	// Performance
	workers     int
	concurrency int
	timeout     int
	rate        int

	// Logging
	quiet   bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "portsweep [flags] <ports> [<target>...]",
	Short: "Ping-gated TCP port scanner",
	Long: `Portsweep - find open TCP ports on live hosts

Every target is pinged first (ICMP echo). Only hosts that answer get
a TCP connect attempt on each requested port; a port is open when the
connection is established within the timeout, closed otherwise.

Port lists use comma-separated ports and ranges, e.g. 22,80,8000-8100.

Output formats:
  • text (default) - one line per live host
  • jsonl - streaming, pipe to jq
  • parquet - columnar, query with DuckDB`,

	Example: `  # Common ports on one host (raw ICMP needs root)
  sudo portsweep 22,80,443 192.168.1.1

  # Sweep a subnet without root, 200ms connect timeout
  portsweep 1-1024 10.0.0.0/24 --icmp-udp -t 200

  # IPv6 target with reverse DNS names
  sudo portsweep 80,443 2001:db8::1 --resolve

  # Read targets from file, at most 256 concurrent connects
  sudo portsweep 1-65535 -f targets.txt -c 256

  # JSONL to jq
  sudo portsweep 22 10.0.0.0/24 --format jsonl | jq '.open_ports'

  # Parquet output for analytics
  sudo portsweep 1-1024 10.0.0.0/16 --format parquet -o scan.parquet
  # Then query: duckdb -c "SELECT ip, open_ports FROM 'scan.parquet' WHERE open_count > 0"`,

	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("requires a port list")
		}
		if inputFile == "" && len(args) < 2 {
			return fmt.Errorf("requires target(s) or -f/--file")
		}
		return nil
	},
	RunE:          runScan,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("portsweep %s (commit: %s, built: %s)\n", version, commit, date))

	f := rootCmd.Flags()

	// Input
	f.StringVarP(&inputFile, "file", "f", "", "Read targets from file (one per line)")

	// ICMP options
	f.IntVar(&icmpTimeout, "icmp-timeout", 0, "Echo reply timeout in milliseconds (0 = ICMP_TIMEOUT)")
	f.BoolVar(&icmpUDP, "icmp-udp", false, "Use UDP sockets (no root needed)")

	// Reverse DNS
	f.BoolVar(&resolveNames, "resolve", false, "Look up PTR names of live hosts")

	// Output
	f.StringVarP(&outputFile, "output", "o", "-", "Output file (- for stdout)")
	f.StringVar(&outputFormat, "format", formatText, "Output format: text, jsonl, parquet")

	// Performance
	f.IntVarP(&timeout, "timeout", "t", 1000, "Connect timeout per port (milliseconds)")
	f.IntVarP(&workers, "workers", "w", 0, "Hosts scanned at once (0 = all)")
	f.IntVarP(&concurrency, "concurrency", "c", config.Scanner.DefaultConcurrency, "Max connects in flight (0 = unlimited)")
	f.IntVarP(&rate, "rate", "r", config.Scanner.DefaultRateLimit, "Max hosts probed per second (0 = unlimited)")

	// Logging
	f.BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	f.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	// Group flags in help
	rootCmd.SetUsageTemplate(usageTemplate)
}

// resultWriter is satisfied by every output format
type resultWriter interface {
	Write(*scanner.HostResult) error
	Close() error
}

func runScan(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("stopping scan...")
		cancel()
	}()

	set, err := ports.Parse(args[0])
	if err != nil {
		return err
	}

	addrs, err := parseTargets(args[1:])
	if err != nil {
		return err
	}

	cfg, err := ResolveOptions(Flags{
		TimeoutMs:     timeout,
		Workers:       workers,
		Concurrency:   concurrency,
		Rate:          rate,
		ICMPTimeoutMs: icmpTimeout,
		ICMPUseUDP:    icmpUDP,
	})
	if err != nil {
		return err
	}

	format, err := resolveFormat(outputFormat, outputFile)
	if err != nil {
		return err
	}

	s, err := scanner.NewScanner(cfg, set, addrs, scanner.WithObserver(logOutcome))
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer s.Stop()

	slog.Info("starting scan", "targets", len(s.Addrs()), "ports", set.Len())
	startTime := time.Now()

	hosts, scanErr := s.Scan(ctx)
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		return fmt.Errorf("scan failed: %w", scanErr)
	}

	if resolveNames && len(hosts) > 0 && ctx.Err() == nil {
		fillHostnames(ctx, hosts)
	}

	w, err := createOutputWriter(format, startTime)
	if err != nil {
		return err
	}
	for _, h := range scanner.SortedResults(hosts) {
		if err := w.Write(h); err != nil {
			w.Close()
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	slog.Info("scan completed",
		"hosts_up", len(hosts),
		"interrupted", scanErr != nil,
		"duration", time.Since(startTime).Round(time.Millisecond))

	return nil
}

func parseTargets(args []string) ([]netip.Addr, error) {
	addrs, err := input.ParseTargets(args)
	if err != nil {
		return nil, err
	}

	if inputFile != "" {
		slog.Debug("reading targets", "file", inputFile)
		fromFile, err := input.ParseFile(inputFile)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, fromFile...)
	}

	if len(addrs) == 0 {
		return nil, fmt.Errorf("no valid IP addresses found")
	}
	return addrs, nil
}

// logOutcome reports sweep progress as outcomes arrive
func logOutcome(o scanner.Outcome) {
	if o.Open {
		slog.Info("port open", "ip", o.Addr, "port", o.Port, "rtt", o.RTT)
		return
	}
	slog.Debug("port closed", "ip", o.Addr, "port", o.Port)
}

func fillHostnames(ctx context.Context, hosts map[netip.Addr]*scanner.HostResult) {
	r, err := rdns.NewResolver(rdns.DefaultConfig())
	if err != nil {
		slog.Warn("reverse lookups disabled", "error", err)
		return
	}

	addrs := make([]netip.Addr, 0, len(hosts))
	for addr := range hosts {
		addrs = append(addrs, addr)
	}

	for addr, name := range r.Names(ctx, addrs) {
		hosts[addr].Hostname = name
	}
}

func createOutputWriter(format string, startTime time.Time) (resultWriter, error) {
	switch format {
	case formatParquet:
		pw, err := output.NewParquetWriter(outputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create parquet writer: %w", err)
		}
		return pw, nil

	case formatJSONL:
		jw, err := output.NewWriter(outputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create writer: %w", err)
		}
		return jw, nil

	default: // text
		tw, err := output.NewTextWriter(outputFile, startTime)
		if err != nil {
			return nil, fmt.Errorf("failed to create writer: %w", err)
		}
		return tw, nil
	}
}

func initLogger() {
	var level slog.Level
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func main() {
	config.Init()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usageTemplate = `Usage:
  {{.UseLine}}

Examples:
{{.Example}}

Input:
  -f, --file string        Read targets from file

ICMP Options:
      --icmp-timeout int   Echo reply timeout in ms, 0=ICMP_TIMEOUT (default 0)
      --icmp-udp           Use UDP sockets, no root needed

Reverse DNS:
      --resolve            Look up PTR names of live hosts

Output:
  -o, --output string      Output file, - for stdout (default "-")
      --format string      Format: text, jsonl, parquet (default "text")

Performance:
  -t, --timeout int        Connect timeout per port in ms (default 1000)
  -w, --workers int        Hosts scanned at once, 0=all (default 0)
  -c, --concurrency int    Max connects in flight, 0=unlimited (default 1024)
  -r, --rate int           Max hosts probed/second, 0=unlimited (default 0)

Logging:
  -q, --quiet              Suppress progress output
  -v, --verbose            Verbose logging

Other:
  -h, --help               Show help
      --version            Show version
`

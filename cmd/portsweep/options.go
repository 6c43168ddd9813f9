package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/velemoonkon/portsweep/pkg/config"
	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// Output formats accepted by --format
const (
	formatText    = "text"
	formatJSONL   = "jsonl"
	formatParquet = "parquet"
)

// Flags represents the CLI flags that shape the scan
type Flags struct {
	TimeoutMs     int // Per-port connect timeout
	Workers       int
	Concurrency   int
	Rate          int
	ICMPTimeoutMs int // 0 = config.Probe.Timeout
	ICMPUseUDP    bool
}

// ResolveOptions maps CLI flags to scanner configuration
func ResolveOptions(flags Flags) (scanner.Config, error) {
	cfg := scanner.DefaultConfig()

	if flags.TimeoutMs <= 0 {
		return cfg, fmt.Errorf("timeout must be positive, got %dms", flags.TimeoutMs)
	}
	if flags.ICMPTimeoutMs < 0 {
		return cfg, fmt.Errorf("icmp timeout must not be negative, got %dms", flags.ICMPTimeoutMs)
	}
	if flags.Workers < 0 {
		return cfg, fmt.Errorf("workers must not be negative, got %d", flags.Workers)
	}

	cfg.ConnectTimeout = time.Duration(flags.TimeoutMs) * time.Millisecond
	cfg.Workers = flags.Workers
	cfg.Concurrency = flags.Concurrency
	cfg.RateLimit = flags.Rate

	if flags.ICMPTimeoutMs > 0 {
		cfg.ProbeTimeout = time.Duration(flags.ICMPTimeoutMs) * time.Millisecond
	} else {
		cfg.ProbeTimeout = config.Probe.Timeout
	}

	// ICMP socket type
	cfg.ICMPPrivileged = config.Probe.Privileged && !flags.ICMPUseUDP

	return cfg, nil
}

// resolveFormat normalizes --format and checks it against --output
func resolveFormat(format, output string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))

	switch format {
	case "", formatText:
		return formatText, nil
	case formatJSONL:
		return formatJSONL, nil
	case formatParquet:
		if output == "-" || output == "" {
			return "", fmt.Errorf("parquet cannot write to stdout, use -o file.parquet")
		}
		return formatParquet, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, jsonl or parquet)", format)
	}
}

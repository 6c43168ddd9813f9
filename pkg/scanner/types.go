package scanner

import (
	"net/netip"
	"slices"
	"time"

	"github.com/velemoonkon/portsweep/pkg/config"
	"github.com/velemoonkon/portsweep/pkg/icmp"
	"github.com/velemoonkon/portsweep/pkg/ports"
)

// ErrNoSupportedAddressFamily is returned by NewScanner when the target list holds no IPv4 or IPv6 address
var ErrNoSupportedAddressFamily = icmp.ErrNoSupportedAddressFamily

// Outcome is the result of one TCP connect attempt
type Outcome struct {
	Addr netip.Addr
	Port uint16
	Open bool
	RTT  time.Duration // Round trip of the reachability probe for Addr
}

// HostResult contains the classification of every probed port for one reachable address
type HostResult struct {
	Addr     netip.Addr
	Hostname string // Filled by reverse lookup when enabled
	RTT      time.Duration
	Status   *ports.Status
}

func (h *HostResult) String() string {
	return h.Status.String()
}

// Config contains scanner configuration
type Config struct {
	ConnectTimeout time.Duration // Per-port TCP connect timeout
	Workers        int           // Concurrent address tasks (0 or negative = one per address)
	Concurrency    int           // Max in-flight connects across all addresses (0 or negative = unbounded)
	RateLimit      int           // Max reachability probes per second (0 or negative = no limit, uses rate.Inf)
	ResultBuffer   int           // Capacity of the outcome channel (0 = config.Scanner.ResultChannelBuffer)
	// ICMP settings
	ProbeTimeout     time.Duration // Explicit wait for an echo reply
	ProbePayloadSize int
	ICMPPrivileged   bool // Use privileged raw sockets (requires root)
}

// DefaultConfig returns default scanner configuration
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: config.Scanner.DefaultConnectTimeout,
		Workers:        0,
		Concurrency:    config.Scanner.DefaultConcurrency,
		RateLimit:      config.Scanner.DefaultRateLimit,
		ResultBuffer:   config.Scanner.ResultChannelBuffer,
		// ICMP defaults
		ProbeTimeout:     config.Probe.Timeout,
		ProbePayloadSize: config.Probe.PayloadSize,
		ICMPPrivileged:   config.Probe.Privileged,
	}
}

// SortedResults returns the results ordered by address
func SortedResults(results map[netip.Addr]*HostResult) []*HostResult {
	sorted := make([]*HostResult, 0, len(results))
	for _, h := range results {
		sorted = append(sorted, h)
	}
	slices.SortFunc(sorted, func(a, b *HostResult) int {
		return a.Addr.Compare(b.Addr)
	})
	return sorted
}

// Summaries maps each address to its formatted status text
func Summaries(results map[netip.Addr]*HostResult) map[netip.Addr]string {
	out := make(map[netip.Addr]string, len(results))
	for addr, h := range results {
		out[addr] = h.String()
	}
	return out
}

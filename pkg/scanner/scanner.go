package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/velemoonkon/portsweep/pkg/config"
	"github.com/velemoonkon/portsweep/pkg/icmp"
	"github.com/velemoonkon/portsweep/pkg/ports"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Scanner runs a ping-gated TCP connect sweep over a fixed set of addresses and ports
type Scanner struct {
	config   Config
	ports    ports.PortSet
	addrs    []netip.Addr
	limiter  *rate.Limiter
	connSem  *semaphore.Weighted
	prober   Prober
	pinger   *icmp.Pinger // Kept separately for lifecycle management
	dialer   Dialer
	observer func(Outcome)
}

// indexedAddr pairs an address with its position in the target list
type indexedAddr struct {
	index int
	addr  netip.Addr
}

// NewScanner creates a scanner for addrs and set.
// It fails with ErrNoSupportedAddressFamily when addrs holds no IPv4 or IPv6 address.
// Unless WithProber is given, an ICMP pinger is created with one socket per family present in addrs.
func NewScanner(cfg Config, set ports.PortSet, addrs []netip.Addr, opts ...Option) (*Scanner, error) {
	unmapped := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		if a.IsValid() {
			unmapped = append(unmapped, a.Unmap())
		}
	}

	families := icmp.FamiliesOf(unmapped)
	if !families.Any() {
		return nil, ErrNoSupportedAddressFamily
	}

	// Validate and sanitize config
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = config.Scanner.DefaultConnectTimeout
	}
	if cfg.Workers <= 0 || cfg.Workers > len(unmapped) {
		cfg.Workers = len(unmapped)
	}
	if cfg.ResultBuffer <= 0 {
		cfg.ResultBuffer = config.Scanner.ResultChannelBuffer
	}

	// Create rate limiter - treat RateLimit <= 0 as no limit
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	var connSem *semaphore.Weighted
	if cfg.Concurrency > 0 {
		connSem = semaphore.NewWeighted(int64(cfg.Concurrency))
	}

	s := &Scanner{
		config:  cfg,
		ports:   set,
		addrs:   unmapped,
		limiter: limiter,
		connSem: connSem,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dialer == nil {
		s.dialer = newDialer(cfg.ConnectTimeout)
	}
	if s.prober == nil {
		pinger, err := icmp.NewPinger(icmp.Config{
			Timeout:     cfg.ProbeTimeout,
			PayloadSize: cfg.ProbePayloadSize,
			Privileged:  cfg.ICMPPrivileged,
		}, families)
		if err != nil {
			return nil, fmt.Errorf("failed to create ICMP pinger: %w", err)
		}
		s.pinger = pinger
		s.prober = pinger
	}

	return s, nil
}

// Start opens the ICMP sockets. Scan calls it implicitly; calling it first surfaces socket errors early.
func (s *Scanner) Start() error {
	if s.pinger != nil {
		if err := s.pinger.Start(); err != nil {
			return fmt.Errorf("failed to start ICMP pinger: %w", err)
		}
	}
	return nil
}

// Stop releases the ICMP sockets
func (s *Scanner) Stop() {
	if s.pinger != nil {
		s.pinger.Stop()
	}
}

// Ports returns the port set being swept
func (s *Scanner) Ports() ports.PortSet {
	return s.ports
}

// Addrs returns the target addresses, IPv4-mapped ones unmapped
func (s *Scanner) Addrs() []netip.Addr {
	return s.addrs
}

// Scan probes every address and sweeps the ports of those that answer.
// Addresses that fail the probe have no entry in the returned map.
// Goroutine fan-out is bounded:
// - Workers goroutines take addresses from addrChan, probe, then sweep
// - Per address: one goroutine per port, gated by the shared connect semaphore
// - A single collector folds outcomes into per-address status
// On cancellation the partial map is returned together with ctx.Err().
func (s *Scanner) Scan(ctx context.Context) (map[netip.Addr]*HostResult, error) {
	if err := s.Start(); err != nil {
		return nil, err
	}

	addrChan := make(chan indexedAddr, max(0, min(config.Scanner.AddrChannelBuffer, len(s.addrs))))
	results := make(chan Outcome, s.config.ResultBuffer)
	var wg sync.WaitGroup

	// Start workers
	for range s.config.Workers {
		wg.Go(func() {
			for ia := range addrChan {
				s.scanAddr(ctx, ia, results)
			}
		})
	}

	// Feed addresses to workers with cooperative cancellation
	go func() {
		defer close(addrChan)
		for i, addr := range s.addrs {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case addrChan <- indexedAddr{index: i, addr: addr}:
			}
		}
	}()

	// Close the outcome channel once every producer is done
	go func() {
		wg.Wait()
		close(results)
	}()

	hosts := make(map[netip.Addr]*HostResult)
	for outcome := range results {
		if s.observer != nil {
			s.observer(outcome)
		}

		host, ok := hosts[outcome.Addr]
		if !ok {
			host = &HostResult{
				Addr:   outcome.Addr,
				RTT:    outcome.RTT,
				Status: ports.NewStatus(len(s.ports)),
			}
			hosts[outcome.Addr] = host
		}
		host.Status.Record(outcome.Port, outcome.Open)
	}

	for _, host := range hosts {
		host.Status.Sort()
	}

	return hosts, ctx.Err()
}

// scanAddr gates the port sweep of one address on its reachability probe
func (s *Scanner) scanAddr(ctx context.Context, ia indexedAddr, results chan<- Outcome) {
	// Identifiers wrap past 65535; the pinger also correlates on per-probe sequence numbers
	id := uint16(ia.index)

	probeCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.config.ProbeTimeout > 0 {
		probeCtx, cancel = context.WithTimeout(ctx, s.config.ProbeTimeout)
	}
	rtt, err := s.prober.Ping(probeCtx, ia.addr, id)
	cancel()

	if err != nil {
		slog.Debug("host not responding", "ip", ia.addr, "error", err)
		return
	}

	slog.Debug("host is up", "ip", ia.addr, "rtt", rtt.Round(time.Microsecond), "ports", len(s.ports))
	s.sweep(ctx, ia.addr, rtt, results)
}

package rdns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/velemoonkon/portsweep/pkg/config"
	"golang.org/x/sync/errgroup"
)

// ErrNoPTR is returned when a server answers without a PTR record
var ErrNoPTR = errors.New("no PTR record")

// Config contains reverse lookup configuration
type Config struct {
	Servers     []string // host or host:port; empty means read ResolvConf
	ResolvConf  string
	Timeout     time.Duration
	Concurrency int // Max concurrent lookups in Names
}

// DefaultConfig returns configuration taken from the environment defaults
func DefaultConfig() Config {
	return Config{
		ResolvConf:  config.DNS.ResolvConf,
		Timeout:     config.DNS.Timeout,
		Concurrency: config.DNS.Concurrency,
	}
}

// Resolver performs PTR lookups over UDP against a fixed list of servers
type Resolver struct {
	client      *dns.Client
	servers     []string
	concurrency int
}

// NewResolver creates a resolver from cfg, loading nameservers from resolv.conf when none are given
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}

	var servers []string
	if len(cfg.Servers) > 0 {
		for _, s := range cfg.Servers {
			// Ensure server has port
			if _, _, err := net.SplitHostPort(s); err != nil {
				s = net.JoinHostPort(s, "53")
			}
			servers = append(servers, s)
		}
	} else {
		cc, err := dns.ClientConfigFromFile(cfg.ResolvConf)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", cfg.ResolvConf, err)
		}
		for _, s := range cc.Servers {
			servers = append(servers, net.JoinHostPort(s, cc.Port))
		}
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("no nameservers configured")
	}

	return &Resolver{
		client: &dns.Client{
			Net:     "udp",
			Timeout: cfg.Timeout,
		},
		servers:     servers,
		concurrency: cfg.Concurrency,
	}, nil
}

// Servers returns the nameservers in query order
func (r *Resolver) Servers() []string {
	return r.servers
}

// Lookup returns the first PTR name for addr without the trailing dot.
// Servers are tried in order until one answers.
func (r *Resolver) Lookup(ctx context.Context, addr netip.Addr) (string, error) {
	name, err := dns.ReverseAddr(addr.Unmap().String())
	if err != nil {
		return "", fmt.Errorf("invalid address %s: %w", addr, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypePTR)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = fmt.Errorf("PTR query to %s failed: %w", server, err)
			if ctx.Err() != nil {
				return "", lastErr
			}
			continue
		}

		for _, rr := range resp.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
		return "", fmt.Errorf("%w for %s (%s)", ErrNoPTR, addr, dns.RcodeToString[resp.Rcode])
	}

	return "", lastErr
}

// Names resolves addrs concurrently and returns the names found.
// Failed lookups are logged and left out of the map.
func (r *Resolver) Names(ctx context.Context, addrs []netip.Addr) map[netip.Addr]string {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var mu sync.Mutex
	names := make(map[netip.Addr]string, len(addrs))

	for _, addr := range addrs {
		g.Go(func() error {
			name, err := r.Lookup(ctx, addr)
			if err != nil {
				slog.Debug("reverse lookup failed", "ip", addr, "error", err)
				return nil
			}
			mu.Lock()
			names[addr] = name
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	return names
}

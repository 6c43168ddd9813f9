package scanner

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Prober answers whether an address is reachable and how fast.
// Implementations must be safe for concurrent use; *icmp.Pinger is the production one.
type Prober interface {
	Ping(ctx context.Context, addr netip.Addr, id uint16) (time.Duration, error)
}

// ProberFunc is a function adapter for the Prober interface
type ProberFunc func(ctx context.Context, addr netip.Addr, id uint16) (time.Duration, error)

func (f ProberFunc) Ping(ctx context.Context, addr netip.Addr, id uint16) (time.Duration, error) {
	return f(ctx, addr, id)
}

// Dialer opens TCP connections; *net.Dialer satisfies it
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc is a function adapter for the Dialer interface
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// Option customizes a Scanner
type Option func(*Scanner)

// WithProber replaces the ICMP pinger, e.g. with a fake in tests
func WithProber(p Prober) Option {
	return func(s *Scanner) {
		s.prober = p
	}
}

// WithDialer replaces the TCP dialer
func WithDialer(d Dialer) Option {
	return func(s *Scanner) {
		s.dialer = d
	}
}

// WithObserver registers a callback invoked once per outcome from the collecting goroutine.
// It must return quickly: a slow observer stalls the producers through channel backpressure.
func WithObserver(fn func(Outcome)) Option {
	return func(s *Scanner) {
		s.observer = fn
	}
}

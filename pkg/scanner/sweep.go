package scanner

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// dialClass describes why a connect attempt did or did not succeed
type dialClass string

const (
	dialOpen       dialClass = "open"
	dialTimeout    dialClass = "timeout"
	dialRefused    dialClass = "refused"
	dialCanceled   dialClass = "canceled"
	dialUnexpected dialClass = "unexpected"
)

// classifyDial maps a dial error to its class. Every class except dialOpen counts as closed.
func classifyDial(err error) dialClass {
	var netErr net.Error
	switch {
	case err == nil:
		return dialOpen
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return dialTimeout
	case errors.Is(err, context.Canceled):
		return dialCanceled
	case errors.Is(err, syscall.ECONNREFUSED):
		return dialRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		return dialTimeout
	default:
		return dialUnexpected
	}
}

// checkPort attempts one bounded TCP connect and reports whether the port is open
func (s *Scanner) checkPort(ctx context.Context, addr netip.Addr, port uint16) bool {
	ctx, cancel := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()

	conn, err := s.dialer.DialContext(ctx, "tcp", netip.AddrPortFrom(addr, port).String())
	class := classifyDial(err)
	switch class {
	case dialOpen:
		conn.Close()
		return true
	case dialUnexpected:
		slog.Warn("unexpected connect error", "ip", addr, "port", port, "error", err)
	default:
		slog.Debug("connect failed", "ip", addr, "port", port, "reason", string(class))
	}
	return false
}

// sweep probes every port of the set on an address that passed the reachability probe.
// Each attempt sends exactly one Outcome before its goroutine exits.
// In-flight connects across all addresses are bounded by the shared semaphore.
func (s *Scanner) sweep(ctx context.Context, addr netip.Addr, rtt time.Duration, results chan<- Outcome) {
	var g errgroup.Group

	for _, port := range s.ports {
		if s.connSem != nil {
			if err := s.connSem.Acquire(ctx, 1); err != nil {
				// Cancelled while waiting for a slot: still account for the port
				results <- Outcome{Addr: addr, Port: port, Open: false, RTT: rtt}
				continue
			}
		}

		g.Go(func() error {
			if s.connSem != nil {
				defer s.connSem.Release(1)
			}
			open := s.checkPort(ctx, addr, port)
			results <- Outcome{Addr: addr, Port: port, Open: open, RTT: rtt}
			return nil
		})
	}

	g.Wait()
}

// newDialer returns the default TCP dialer used for connect attempts
func newDialer(timeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: -1, // Disable keep-alive for scanning
	}
}

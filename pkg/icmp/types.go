package icmp

import (
	"errors"
	"net/netip"
	"time"
)

var (
	// ErrNoSupportedAddressFamily is returned when a pinger is built for neither IPv4 nor IPv6
	ErrNoSupportedAddressFamily = errors.New("no supported IP address family: target list holds no IPv4 or IPv6 address")
	// ErrFamilyUnavailable is returned when pinging an address whose family socket was not provisioned
	ErrFamilyUnavailable = errors.New("address family not provisioned")
	// ErrNotStarted is returned by Ping before Start succeeded
	ErrNotStarted = errors.New("pinger not started")
)

// Config contains ICMP pinger configuration
type Config struct {
	Timeout     time.Duration // Round-trip wait per echo request
	PayloadSize int           // ICMP payload size in bytes
	Privileged  bool          // Use privileged raw sockets (requires root)
}

// DefaultConfig returns default ICMP configuration
func DefaultConfig() Config {
	return Config{
		Timeout:     2 * time.Second,
		PayloadSize: 56,
		Privileged:  true, // Raw sockets keep the echo identifier intact
	}
}

// Families records which address families need an ICMP socket
type Families struct {
	V4 bool
	V6 bool
}

// FamiliesOf reports which families occur in addrs
func FamiliesOf(addrs []netip.Addr) Families {
	var f Families
	for _, a := range addrs {
		a = a.Unmap()
		switch {
		case a.Is4():
			f.V4 = true
		case a.Is6():
			f.V6 = true
		}
		if f.V4 && f.V6 {
			break
		}
	}
	return f
}

// Any reports whether at least one family is required
func (f Families) Any() bool {
	return f.V4 || f.V6
}

// pendingKey correlates an echo reply with its request.
// id is zero for unprivileged sockets, where the kernel owns the identifier.
type pendingKey struct {
	addr netip.Addr
	id   uint16
	seq  uint16
}

// pingResponse represents an internal ping response
type pingResponse struct {
	rtt time.Duration
}

// pendingPing tracks an outstanding ping request
type pendingPing struct {
	sentAt   time.Time
	respChan chan pingResponse
}

package icmp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP   = 1
	protocolICMPv6 = 58
)

// Pinger sends ICMP echo requests over at most one socket per address family.
// A single Pinger is shared by all probe goroutines and is safe for concurrent use.
type Pinger struct {
	config   Config
	families Families
	seqNum   atomic.Uint32
	mu       sync.Mutex
	pending  map[pendingKey]*pendingPing
	conn4    *icmp.PacketConn
	conn6    *icmp.PacketConn
	started  atomic.Bool
	closed   atomic.Bool
	loops    sync.WaitGroup
}

// NewPinger creates a pinger for the given address families.
// It fails when neither family is requested.
func NewPinger(cfg Config, families Families) (*Pinger, error) {
	if !families.Any() {
		return nil, ErrNoSupportedAddressFamily
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.PayloadSize <= 0 {
		cfg.PayloadSize = 56
	}

	return &Pinger{
		config:   cfg,
		families: families,
		pending:  make(map[pendingKey]*pendingPing),
	}, nil
}

// Families returns the address families this pinger serves
func (p *Pinger) Families() Families {
	return p.families
}

// Start opens the ICMP sockets for the configured families and starts the receivers
func (p *Pinger) Start() error {
	if p.started.Load() {
		return nil
	}

	var err error
	if p.families.V4 {
		network := "ip4:icmp"
		if !p.config.Privileged {
			network = "udp4"
		}
		p.conn4, err = icmp.ListenPacket(network, "0.0.0.0")
		if err != nil {
			return fmt.Errorf("failed to listen on IPv4: %w", err)
		}
	}

	if p.families.V6 {
		network := "ip6:ipv6-icmp"
		if !p.config.Privileged {
			network = "udp6"
		}
		p.conn6, err = icmp.ListenPacket(network, "::")
		if err != nil {
			if p.conn4 != nil {
				p.conn4.Close()
				p.conn4 = nil
			}
			return fmt.Errorf("failed to listen on IPv6: %w", err)
		}
	}

	if p.conn4 != nil {
		conn := p.conn4
		p.loops.Go(func() { p.receiveLoop(conn, false) })
	}
	if p.conn6 != nil {
		conn := p.conn6
		p.loops.Go(func() { p.receiveLoop(conn, true) })
	}

	p.started.Store(true)
	return nil
}

// Stop closes the sockets and waits for the receivers to exit
func (p *Pinger) Stop() {
	if p.closed.Swap(true) {
		return
	}
	if p.conn4 != nil {
		p.conn4.Close()
	}
	if p.conn6 != nil {
		p.conn6.Close()
	}
	p.loops.Wait()
}

// Ping sends one echo request to addr tagged with id and waits for the reply.
// The wait is bounded by both ctx and the configured timeout.
func (p *Pinger) Ping(ctx context.Context, addr netip.Addr, id uint16) (time.Duration, error) {
	if !p.started.Load() || p.closed.Load() {
		return 0, ErrNotStarted
	}

	addr = addr.Unmap().WithZone("")
	isIPv6 := addr.Is6()

	conn := p.conn4
	if isIPv6 {
		conn = p.conn6
	}
	if conn == nil {
		return 0, fmt.Errorf("%w: %s", ErrFamilyUnavailable, addr)
	}

	seq := uint16(p.seqNum.Add(1))
	respChan := make(chan pingResponse, 1)

	// Register pending ping before sending so a fast reply is never missed
	key := p.keyFor(addr, id, seq)
	sentAt := time.Now()
	p.mu.Lock()
	p.pending[key] = &pendingPing{
		sentAt:   sentAt,
		respChan: respChan,
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, key)
		p.mu.Unlock()
	}()

	msgBytes, err := p.buildEcho(isIPv6, id, seq, sentAt)
	if err != nil {
		return 0, err
	}

	var dst net.Addr
	if p.config.Privileged {
		dst = &net.IPAddr{IP: addr.AsSlice()}
	} else {
		dst = &net.UDPAddr{IP: addr.AsSlice()}
	}

	if _, err := conn.WriteTo(msgBytes, dst); err != nil {
		return 0, fmt.Errorf("failed to send ICMP: %w", err)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case resp := <-respChan:
		return resp.rtt, nil
	case <-time.After(p.config.Timeout):
		return 0, fmt.Errorf("timeout waiting for reply from %s", addr)
	}
}

// keyFor builds the correlation key. Unprivileged datagram sockets have their
// identifier rewritten by the kernel, so only address and sequence apply there.
func (p *Pinger) keyFor(addr netip.Addr, id, seq uint16) pendingKey {
	if !p.config.Privileged {
		id = 0
	}
	return pendingKey{addr: addr, id: id, seq: seq}
}

// buildEcho marshals an echo request whose payload starts with the send timestamp
func (p *Pinger) buildEcho(isIPv6 bool, id, seq uint16, sentAt time.Time) ([]byte, error) {
	var msgType icmp.Type = ipv4.ICMPTypeEcho
	if isIPv6 {
		msgType = ipv6.ICMPTypeEchoRequest
	}

	payload := make([]byte, p.config.PayloadSize)
	if len(payload) >= 8 {
		binary.BigEndian.PutUint64(payload, uint64(sentAt.UnixNano()))
	}

	msg := &icmp.Message{
		Type: msgType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(id),
			Seq:  int(seq),
			Data: payload,
		},
	}

	b, err := msg.Marshal(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ICMP message: %w", err)
	}
	return b, nil
}

// receiveLoop continuously receives ICMP responses until the pinger is stopped
func (p *Pinger) receiveLoop(conn *icmp.PacketConn, isIPv6 bool) {
	buf := make([]byte, 1500)

	for !p.closed.Load() {
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if p.closed.Load() {
				return
			}
			slog.Debug("ICMP read error", "error", err)
			continue
		}

		p.dispatch(buf[:n], peer, isIPv6, time.Now())
	}
}

// dispatch matches one received packet against the pending requests
func (p *Pinger) dispatch(packet []byte, peer net.Addr, isIPv6 bool, recvTime time.Time) bool {
	proto := protocolICMP
	if isIPv6 {
		proto = protocolICMPv6
	}

	msg, err := icmp.ParseMessage(proto, packet)
	if err != nil {
		return false
	}

	if isIPv6 && msg.Type != ipv6.ICMPTypeEchoReply {
		return false
	}
	if !isIPv6 && msg.Type != ipv4.ICMPTypeEchoReply {
		return false
	}

	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		return false
	}

	var peerIP net.IP
	switch a := peer.(type) {
	case *net.IPAddr:
		peerIP = a.IP
	case *net.UDPAddr:
		peerIP = a.IP
	default:
		return false
	}
	peerAddr, ok := netip.AddrFromSlice(peerIP)
	if !ok {
		return false
	}

	key := p.keyFor(peerAddr.Unmap(), uint16(echo.ID), uint16(echo.Seq))
	p.mu.Lock()
	pending, ok := p.pending[key]
	p.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case pending.respChan <- pingResponse{rtt: recvTime.Sub(pending.sentAt)}:
	default:
	}
	return true
}

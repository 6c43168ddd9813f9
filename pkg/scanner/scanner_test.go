package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velemoonkon/portsweep/pkg/ports"
)

// alwaysUp answers every probe immediately
var alwaysUp = ProberFunc(func(ctx context.Context, addr netip.Addr, id uint16) (time.Duration, error) {
	return time.Millisecond, nil
})

func addrs(ss ...string) []netip.Addr {
	out := make([]netip.Addr, 0, len(ss))
	for _, s := range ss {
		out = append(out, netip.MustParseAddr(s))
	}
	return out
}

func TestNewScannerNoAddresses(t *testing.T) {
	tests := []struct {
		name  string
		addrs []netip.Addr
	}{
		{name: "Nil", addrs: nil},
		{name: "Empty", addrs: []netip.Addr{}},
		{name: "Only invalid", addrs: []netip.Addr{{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScanner(DefaultConfig(), ports.MustParse("80"), tt.addrs)
			assert.ErrorIs(t, err, ErrNoSupportedAddressFamily)
			assert.Nil(t, s)
		})
	}
}

func TestNewScannerSanitizesConfig(t *testing.T) {
	s, err := NewScanner(Config{}, ports.MustParse("80"), addrs("192.0.2.1", "::ffff:192.0.2.2"), WithProber(alwaysUp))
	require.NoError(t, err)

	assert.Equal(t, 2, s.config.Workers)
	assert.Equal(t, time.Second, s.config.ConnectTimeout)
	assert.Equal(t, 100, s.config.ResultBuffer)
	assert.Nil(t, s.connSem)
	assert.Nil(t, s.pinger)
	assert.Equal(t, addrs("192.0.2.1", "192.0.2.2"), s.Addrs())
	assert.Equal(t, ports.PortSet{80}, s.Ports())
}

func TestNewScannerCreatesPinger(t *testing.T) {
	s, err := NewScanner(DefaultConfig(), ports.MustParse("80"), addrs("2001:db8::1"))
	require.NoError(t, err)
	require.NotNil(t, s.pinger)

	assert.False(t, s.pinger.Families().V4)
	assert.True(t, s.pinger.Families().V6)
	s.Stop()
}

func TestClassifyDial(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want dialClass
	}{
		{name: "Success", err: nil, want: dialOpen},
		{name: "Context deadline", err: context.DeadlineExceeded, want: dialTimeout},
		{name: "Wrapped deadline", err: fmt.Errorf("dial: %w", os.ErrDeadlineExceeded), want: dialTimeout},
		{name: "Canceled", err: context.Canceled, want: dialCanceled},
		{name: "Refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, want: dialRefused},
		{name: "Other", err: errors.New("network is unreachable"), want: dialUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDial(tt.err))
		})
	}
}

func TestSortedResultsAndSummaries(t *testing.T) {
	results := map[netip.Addr]*HostResult{}
	for i, a := range addrs("10.0.0.2", "::1", "10.0.0.1") {
		st := ports.NewStatus(2)
		st.Record(uint16(i+1), true)
		results[a] = &HostResult{Addr: a, Status: st}
	}

	sorted := SortedResults(results)
	require.Len(t, sorted, 3)
	assert.Equal(t, addrs("10.0.0.1", "10.0.0.2", "::1"), []netip.Addr{sorted[0].Addr, sorted[1].Addr, sorted[2].Addr})

	summaries := Summaries(results)
	assert.Equal(t, "open: 1; closed: none", summaries[netip.MustParseAddr("10.0.0.2")])
	assert.Equal(t, "open: 3; closed: none", summaries[netip.MustParseAddr("10.0.0.1")])
}

// closedPort returns a loopback port that nothing listens on
func closedPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())
	return port
}

func TestScanLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping loopback test in short mode")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	open := uint16(ln.Addr().(*net.TCPAddr).Port)
	closed := closedPort(t)

	cfg := DefaultConfig()
	cfg.ConnectTimeout = 200 * time.Millisecond
	s, err := NewScanner(cfg, ports.PortSet{closed, open}, addrs("127.0.0.1"), WithProber(alwaysUp))
	require.NoError(t, err)

	results, err := s.Scan(t.Context())
	require.NoError(t, err)
	require.Contains(t, results, netip.MustParseAddr("127.0.0.1"))

	status := results[netip.MustParseAddr("127.0.0.1")].Status
	assert.Equal(t, []uint16{open}, status.Open)
	assert.Equal(t, []uint16{closed}, status.Closed)
}

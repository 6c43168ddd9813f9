package rdns

import (
	"context"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs an in-process DNS server answering PTR queries from zone
func startServer(t *testing.T, zone map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(req)
			q := req.Question[0]
			if name, ok := zone[q.Name]; ok && q.Qtype == dns.TypePTR {
				m.Answer = append(m.Answer, &dns.PTR{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
					Ptr: name,
				})
			} else {
				m.Rcode = dns.RcodeNameError
			}
			w.WriteMsg(m)
		}),
	}

	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestNewResolverExplicitServers(t *testing.T) {
	r, err := NewResolver(Config{Servers: []string{"192.0.2.53", "[2001:db8::53]:5353"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.53:53", "[2001:db8::53]:5353"}, r.Servers())
	assert.Equal(t, 16, r.concurrency)
	assert.Equal(t, 2*time.Second, r.client.Timeout)
}

func TestNewResolverResolvConf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver 127.0.0.1\nnameserver ::1\n"), 0o644))

	r, err := NewResolver(Config{ResolvConf: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:53", "[::1]:53"}, r.Servers())
}

func TestNewResolverErrors(t *testing.T) {
	_, err := NewResolver(Config{ResolvConf: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0o644))
	_, err = NewResolver(Config{ResolvConf: empty})
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	server := startServer(t, map[string]string{
		"1.2.0.192.in-addr.arpa.": "gateway.example.",
		"1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa.": "v6.example.",
	})

	r, err := NewResolver(Config{Servers: []string{server}, Timeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	name, err := r.Lookup(ctx, netip.MustParseAddr("192.0.2.1"))
	require.NoError(t, err)
	assert.Equal(t, "gateway.example", name)

	name, err = r.Lookup(ctx, netip.MustParseAddr("2001:db8::1"))
	require.NoError(t, err)
	assert.Equal(t, "v6.example", name)

	_, err = r.Lookup(ctx, netip.MustParseAddr("192.0.2.2"))
	assert.ErrorIs(t, err, ErrNoPTR)
}

func TestLookupFallsThroughDeadServer(t *testing.T) {
	server := startServer(t, map[string]string{"1.2.0.192.in-addr.arpa.": "gateway.example."})

	// Nothing listens on the first server; the datagram is dropped or refused
	dead, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.LocalAddr().String()
	dead.Close()

	r, err := NewResolver(Config{Servers: []string{deadAddr, server}, Timeout: 300 * time.Millisecond})
	require.NoError(t, err)

	name, err := r.Lookup(t.Context(), netip.MustParseAddr("192.0.2.1"))
	require.NoError(t, err)
	assert.Equal(t, "gateway.example", name)
}

func TestNames(t *testing.T) {
	server := startServer(t, map[string]string{
		"1.2.0.192.in-addr.arpa.": "a.example.",
		"2.2.0.192.in-addr.arpa.": "b.example.",
	})

	r, err := NewResolver(Config{Servers: []string{server}, Timeout: time.Second, Concurrency: 2})
	require.NoError(t, err)

	names := r.Names(t.Context(), []netip.Addr{
		netip.MustParseAddr("192.0.2.1"),
		netip.MustParseAddr("192.0.2.2"),
		netip.MustParseAddr("192.0.2.3"),
	})

	assert.Equal(t, map[netip.Addr]string{
		netip.MustParseAddr("192.0.2.1"): "a.example",
		netip.MustParseAddr("192.0.2.2"): "b.example",
	}, names)
}

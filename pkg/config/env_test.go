package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	s := DefaultScannerConfig()
	assert.Equal(t, 100, s.ResultChannelBuffer)
	assert.Equal(t, 1000, s.AddrChannelBuffer)
	assert.Equal(t, time.Second, s.DefaultConnectTimeout)
	assert.Equal(t, 1024, s.DefaultConcurrency)
	assert.Equal(t, 0, s.DefaultRateLimit)

	p := DefaultProbeConfig()
	assert.Equal(t, 2*time.Second, p.Timeout)
	assert.Equal(t, 56, p.PayloadSize)
	assert.True(t, p.Privileged)

	d := DefaultDNSConfig()
	assert.Equal(t, "/etc/resolv.conf", d.ResolvConf)
	assert.Equal(t, 16, d.Concurrency)
}

func TestEnvOverrides(t *testing.T) {
	// Registered first so it runs after the env vars are restored
	t.Cleanup(Init)

	t.Setenv("PORTSWEEP_SCANNER_RESULT_BUFFER", "7")
	t.Setenv("PORTSWEEP_DEFAULT_CONNECT_TIMEOUT", "250ms")
	t.Setenv("PORTSWEEP_ICMP_PRIVILEGED", "off")
	t.Setenv("PORTSWEEP_DNS_RESOLV_CONF", "/tmp/resolv.conf")

	Init()

	assert.Equal(t, 7, Scanner.ResultChannelBuffer)
	assert.Equal(t, 250*time.Millisecond, Scanner.DefaultConnectTimeout)
	assert.False(t, Probe.Privileged)
	assert.Equal(t, "/tmp/resolv.conf", DNS.ResolvConf)
}

func TestEnvInvalidFallsBack(t *testing.T) {
	t.Setenv("PORTSWEEP_SCANNER_ADDR_BUFFER", "lots")
	t.Setenv("PORTSWEEP_ICMP_TIMEOUT", "soon")
	t.Setenv("PORTSWEEP_ICMP_PRIVILEGED", "maybe")

	assert.Equal(t, 1000, DefaultScannerConfig().AddrChannelBuffer)
	assert.Equal(t, 2*time.Second, DefaultProbeConfig().Timeout)
	assert.True(t, DefaultProbeConfig().Privileged)
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable prefix for all portsweep settings
const envPrefix = "PORTSWEEP_"

// ScannerConfig contains configurable scanner settings
type ScannerConfig struct {
	// Channel buffer sizes
	ResultChannelBuffer int
	AddrChannelBuffer   int

	// CLI defaults (overridable via CLI)
	DefaultConnectTimeout time.Duration
	DefaultConcurrency    int
	DefaultRateLimit      int
}

// ProbeConfig contains ICMP reachability probe settings
type ProbeConfig struct {
	Timeout     time.Duration
	PayloadSize int
	Privileged  bool
}

// DNSConfig contains reverse lookup settings
type DNSConfig struct {
	ResolvConf  string
	Timeout     time.Duration
	Concurrency int
}

// DefaultScannerConfig returns default scanner configuration
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		ResultChannelBuffer:   getEnvInt("SCANNER_RESULT_BUFFER", 100),                // 100 outcomes
		AddrChannelBuffer:     getEnvInt("SCANNER_ADDR_BUFFER", 1000),                 // 1000 addresses
		DefaultConnectTimeout: getEnvDuration("DEFAULT_CONNECT_TIMEOUT", time.Second), // 1s
		DefaultConcurrency:    getEnvInt("DEFAULT_CONCURRENCY", 1024),                 // 1024 in-flight connects
		DefaultRateLimit:      getEnvInt("DEFAULT_RATE_LIMIT", 0),                     // unlimited
	}
}

// DefaultProbeConfig returns default ICMP probe configuration
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Timeout:     getEnvDuration("ICMP_TIMEOUT", 2*time.Second), // 2s
		PayloadSize: getEnvInt("ICMP_PAYLOAD_SIZE", 56),            // 56 bytes, as ping(8)
		Privileged:  getEnvBool("ICMP_PRIVILEGED", true),           // raw sockets
	}
}

// DefaultDNSConfig returns default reverse lookup configuration
func DefaultDNSConfig() DNSConfig {
	return DNSConfig{
		ResolvConf:  getEnvString("DNS_RESOLV_CONF", "/etc/resolv.conf"),
		Timeout:     getEnvDuration("DNS_TIMEOUT", 2*time.Second),
		Concurrency: getEnvInt("DNS_CONCURRENCY", 16),
	}
}

// getEnvInt retrieves an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a default value
// Accepts values like "500ms", "5s", "1m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable with a default value
// Accepts: "true", "false", "1", "0", "yes", "no", "on", "off" (case-insensitive)
func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(envPrefix + key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvString retrieves a string environment variable with a default value
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultValue
}

// Global configuration instances (initialized once at startup)
var (
	Scanner = DefaultScannerConfig()
	Probe   = DefaultProbeConfig()
	DNS     = DefaultDNSConfig()
)

// Init initializes all configuration from environment variables
// Call this at application startup
func Init() {
	Scanner = DefaultScannerConfig()
	Probe = DefaultProbeConfig()
	DNS = DefaultDNSConfig()
}

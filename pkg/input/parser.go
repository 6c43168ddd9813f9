package input

import (
	"bufio"
	"fmt"
	"iter"
	"net/netip"
	"os"
	"slices"
	"strings"

	"go4.org/netipx"
)

// ParseTargets parses command-line targets (IPs, CIDRs, comma-separated)
func ParseTargets(targets []string) ([]netip.Addr, error) {
	var addrs []netip.Addr

	for _, target := range targets {
		// Handle comma-separated values
		for part := range strings.SplitSeq(target, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			parsed, err := parseTarget(part)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, parsed...)
		}
	}

	return addrs, nil
}

// ParseFile reads IPs and CIDRs from a file (one per line)
func ParseFile(filename string) ([]netip.Addr, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var addrs []netip.Addr
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parsed, err := parseTarget(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		addrs = append(addrs, parsed...)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return addrs, nil
}

// parseTarget parses one IP or CIDR token
func parseTarget(s string) ([]netip.Addr, error) {
	if strings.Contains(s, "/") {
		addrs, err := ExpandCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %s: %w", s, err)
		}
		return addrs, nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("invalid IP address: %s", s)
	}
	return []netip.Addr{addr.Unmap()}, nil
}

// AddrRange returns an iterator over the addresses of a CIDR range
// This enables lazy evaluation and streaming without allocating the full slice
// Example: for addr := range seq { process(addr) }
func AddrRange(cidr string) (iter.Seq[netip.Addr], error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, err
	}

	r := netipx.RangeOfPrefix(prefix.Masked())
	if !r.IsValid() {
		return nil, fmt.Errorf("empty range for %s", cidr)
	}

	return func(yield func(netip.Addr) bool) {
		for addr := r.From(); ; addr = addr.Next() {
			if !yield(addr.Unmap()) {
				return
			}
			if addr == r.To() {
				return
			}
		}
	}, nil
}

// ExpandCIDR expands a CIDR range into individual addresses
// For streaming use cases, prefer AddrRange() to avoid allocating the full slice
func ExpandCIDR(cidr string) ([]netip.Addr, error) {
	seq, err := AddrRange(cidr)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

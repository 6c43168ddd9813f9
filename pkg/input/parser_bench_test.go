package input

import (
	"net/netip"
	"testing"
)

// BenchmarkExpandCIDR_Small benchmarks /24 CIDR expansion (256 IPs)
func BenchmarkExpandCIDR_Small(b *testing.B) {
	b.ReportAllocs()
	for range b.N {
		addrs, err := ExpandCIDR("192.168.1.0/24")
		if err != nil {
			b.Fatal(err)
		}
		if len(addrs) != 256 {
			b.Fatalf("Expected 256 IPs, got %d", len(addrs))
		}
	}
}

// BenchmarkExpandCIDR_Large benchmarks /16 CIDR expansion (65536 IPs)
func BenchmarkExpandCIDR_Large(b *testing.B) {
	b.ReportAllocs()
	for range b.N {
		addrs, err := ExpandCIDR("172.16.0.0/16")
		if err != nil {
			b.Fatal(err)
		}
		if len(addrs) != 65536 {
			b.Fatalf("Expected 65536 IPs, got %d", len(addrs))
		}
	}
}

// BenchmarkAddrRange_StreamingVsSlice_Medium compares memory usage
// netip.Addr is a value type, so streaming allocates nothing per address
func BenchmarkAddrRange_StreamingVsSlice_Medium(b *testing.B) {
	b.Run("Streaming", func(b *testing.B) {
		b.ReportAllocs()
		for range b.N {
			seq, err := AddrRange("10.0.0.0/20")
			if err != nil {
				b.Fatal(err)
			}

			var last netip.Addr
			for addr := range seq {
				last = addr
			}
			_ = last
		}
	})

	b.Run("Slice", func(b *testing.B) {
		b.ReportAllocs()
		for range b.N {
			addrs, err := ExpandCIDR("10.0.0.0/20")
			if err != nil {
				b.Fatal(err)
			}

			var last netip.Addr
			for _, addr := range addrs {
				last = addr
			}
			_ = last
		}
	})
}

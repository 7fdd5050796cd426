// pkg/efi/snp/stats_test.go
package snp

import (
	"testing"
	"unsafe"
)

func TestNetworkStatsLayout(t *testing.T) {
	if got := unsafe.Sizeof(NetworkStats{}); got != 26*8 {
		t.Fatalf("size = %d", got)
	}
}

func TestCounterNames(t *testing.T) {
	for c := Counter(0); c < CounterCount; c++ {
		back, ok := ParseCounter(c.String())
		if !ok || back != c {
			t.Errorf("%d: %s does not parse back", c, c)
		}
	}
	if _, ok := ParseCounter("bogus"); ok {
		t.Error("unknown name parsed")
	}
}

func TestGetSentinel(t *testing.T) {
	var s NetworkStats
	s.Counters[RxDroppedFrames] = Unsupported
	s.Counters[TxRetryFrames] = 3

	if _, ok := s.RxDroppedFrames(); ok {
		t.Error("all-ones counter reported as present")
	}
	if v, ok := s.TxRetryFrames(); !ok || v != 3 {
		t.Errorf("got %d, %v", v, ok)
	}
	if v, ok := s.Collisions(); !ok || v != 0 {
		t.Errorf("zero counter must be present, got %d, %v", v, ok)
	}
	if _, ok := s.Get(CounterCount); ok {
		t.Error("out of range counter reported as present")
	}
}

func TestMulticastFiltersClamp(t *testing.T) {
	m := NetworkMode{MCastFilterCount: 40, MaxMCastFilterCount: 99}

	if got := len(m.MulticastFilters()); got != MaxMCastFilterCount {
		t.Fatalf("filters = %d", got)
	}
	if m.MulticastCapacity() != MaxMCastFilterCount {
		t.Fatalf("capacity = %d", m.MulticastCapacity())
	}
}

func TestTableLayout(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("64-bit layout")
	}

	var tbl Table
	if off := unsafe.Offsetof(tbl.Receive); off != 8+12*8 {
		t.Fatalf("Receive offset = %d", off)
	}
	if off := unsafe.Offsetof(tbl.Mode); off != 8+13*8+8 {
		t.Fatalf("Mode offset = %d", off)
	}
}

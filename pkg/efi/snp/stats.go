// pkg/efi/snp/stats.go
package snp

// Unsupported is the counter value firmware uses for statistics the device
// does not track.
const Unsupported = ^uint64(0)

// Counter indexes a NetworkStats field.
type Counter int

// EFI_NETWORK_STATISTICS fields, in layout order
const (
	RxTotalFrames Counter = iota
	RxGoodFrames
	RxUndersizeFrames
	RxOversizeFrames
	RxDroppedFrames
	RxUnicastFrames
	RxBroadcastFrames
	RxMulticastFrames
	RxCrcErrorFrames
	RxTotalBytes
	TxTotalFrames
	TxGoodFrames
	TxUndersizeFrames
	TxOversizeFrames
	TxDroppedFrames
	TxUnicastFrames
	TxBroadcastFrames
	TxMulticastFrames
	TxCrcErrorFrames
	TxTotalBytes
	Collisions
	UnsupportedProtocol
	RxDuplicatedFrames
	RxDecryptErrorFrames
	TxErrorFrames
	TxRetryFrames

	CounterCount
)

var counterNames = [CounterCount]string{
	"rx_total_frames",
	"rx_good_frames",
	"rx_undersize_frames",
	"rx_oversize_frames",
	"rx_dropped_frames",
	"rx_unicast_frames",
	"rx_broadcast_frames",
	"rx_multicast_frames",
	"rx_crc_error_frames",
	"rx_total_bytes",
	"tx_total_frames",
	"tx_good_frames",
	"tx_undersize_frames",
	"tx_oversize_frames",
	"tx_dropped_frames",
	"tx_unicast_frames",
	"tx_broadcast_frames",
	"tx_multicast_frames",
	"tx_crc_error_frames",
	"tx_total_bytes",
	"collisions",
	"unsupported_protocol",
	"rx_duplicated_frames",
	"rx_decrypt_error_frames",
	"tx_error_frames",
	"tx_retry_frames",
}

func (c Counter) String() string {
	if c < 0 || c >= CounterCount {
		return "unknown"
	}
	return counterNames[c]
}

// ParseCounter maps a counter name back to its index.
func ParseCounter(name string) (Counter, bool) {
	for i, n := range counterNames {
		if n == name {
			return Counter(i), true
		}
	}
	return 0, false
}

// NetworkStats is EFI_NETWORK_STATISTICS. Counters set to Unsupported are
// reported as absent by every accessor.
type NetworkStats struct {
	Counters [CounterCount]uint64
}

// Get returns a counter; ok is false when the device does not support it.
func (s *NetworkStats) Get(c Counter) (uint64, bool) {
	if c < 0 || c >= CounterCount {
		return 0, false
	}

	v := s.Counters[c]
	if v == Unsupported {
		return 0, false
	}
	return v, true
}

// Each calls fn for every counter in layout order.
func (s *NetworkStats) Each(fn func(c Counter, v uint64, ok bool)) {
	for c := Counter(0); c < CounterCount; c++ {
		v, ok := s.Get(c)
		fn(c, v, ok)
	}
}

// Snapshot returns the counters keyed by name; unsupported counters map to
// nil.
func (s *NetworkStats) Snapshot() map[string]*uint64 {
	out := make(map[string]*uint64, CounterCount)
	s.Each(func(c Counter, v uint64, ok bool) {
		if !ok {
			out[c.String()] = nil
			return
		}
		out[c.String()] = &v
	})
	return out
}

func (s *NetworkStats) RxTotalFrames() (uint64, bool)        { return s.Get(RxTotalFrames) }
func (s *NetworkStats) RxGoodFrames() (uint64, bool)         { return s.Get(RxGoodFrames) }
func (s *NetworkStats) RxUndersizeFrames() (uint64, bool)    { return s.Get(RxUndersizeFrames) }
func (s *NetworkStats) RxOversizeFrames() (uint64, bool)     { return s.Get(RxOversizeFrames) }
func (s *NetworkStats) RxDroppedFrames() (uint64, bool)      { return s.Get(RxDroppedFrames) }
func (s *NetworkStats) RxUnicastFrames() (uint64, bool)      { return s.Get(RxUnicastFrames) }
func (s *NetworkStats) RxBroadcastFrames() (uint64, bool)    { return s.Get(RxBroadcastFrames) }
func (s *NetworkStats) RxMulticastFrames() (uint64, bool)    { return s.Get(RxMulticastFrames) }
func (s *NetworkStats) RxCrcErrorFrames() (uint64, bool)     { return s.Get(RxCrcErrorFrames) }
func (s *NetworkStats) RxTotalBytes() (uint64, bool)         { return s.Get(RxTotalBytes) }
func (s *NetworkStats) TxTotalFrames() (uint64, bool)        { return s.Get(TxTotalFrames) }
func (s *NetworkStats) TxGoodFrames() (uint64, bool)         { return s.Get(TxGoodFrames) }
func (s *NetworkStats) TxUndersizeFrames() (uint64, bool)    { return s.Get(TxUndersizeFrames) }
func (s *NetworkStats) TxOversizeFrames() (uint64, bool)     { return s.Get(TxOversizeFrames) }
func (s *NetworkStats) TxDroppedFrames() (uint64, bool)      { return s.Get(TxDroppedFrames) }
func (s *NetworkStats) TxUnicastFrames() (uint64, bool)      { return s.Get(TxUnicastFrames) }
func (s *NetworkStats) TxBroadcastFrames() (uint64, bool)    { return s.Get(TxBroadcastFrames) }
func (s *NetworkStats) TxMulticastFrames() (uint64, bool)    { return s.Get(TxMulticastFrames) }
func (s *NetworkStats) TxCrcErrorFrames() (uint64, bool)     { return s.Get(TxCrcErrorFrames) }
func (s *NetworkStats) TxTotalBytes() (uint64, bool)         { return s.Get(TxTotalBytes) }
func (s *NetworkStats) Collisions() (uint64, bool)           { return s.Get(Collisions) }
func (s *NetworkStats) UnsupportedProtocol() (uint64, bool)  { return s.Get(UnsupportedProtocol) }
func (s *NetworkStats) RxDuplicatedFrames() (uint64, bool)   { return s.Get(RxDuplicatedFrames) }
func (s *NetworkStats) RxDecryptErrorFrames() (uint64, bool) { return s.Get(RxDecryptErrorFrames) }
func (s *NetworkStats) TxErrorFrames() (uint64, bool)        { return s.Get(TxErrorFrames) }
func (s *NetworkStats) TxRetryFrames() (uint64, bool)        { return s.Get(TxRetryFrames) }

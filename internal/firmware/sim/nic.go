// internal/firmware/sim/nic.go
package sim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"efi-access/pkg/efi"
	"efi-access/pkg/efi/snp"
)

const (
	ethernetHeaderSize = 14
	ethernetAddrSize   = 6
)

var (
	ErrQueueFull  = errors.New("sim: receive queue is full")
	ErrNotRunning = errors.New("sim: interface is not initialized")
	ErrShortFrame = errors.New("sim: frame is shorter than a media header")
)

// NICConfig describes an emulated network interface.
type NICConfig struct {
	MAC                 snp.MacAddress
	MaxPacketSize       uint32
	MaxMCastFilterCount uint32
	NvRAMSize           uint32
	NvRAMAccessSize     uint32
	RxQueueDepth        int
	TxQueueDepth        int
	Loopback            bool
	MediaPresent        bool
	AddressChangeable   bool
	// Counters reported as unsupported
	Unsupported []snp.Counter
}

// DefaultNICConfig returns a 1500-byte Ethernet interface with a locally
// administered address.
func DefaultNICConfig() NICConfig {
	return NICConfig{
		MAC:                 snp.MacAddress{0x52, 0x54, 0x00, 0x12, 0x34, 0x56},
		MaxPacketSize:       1500,
		MaxMCastFilterCount: snp.MaxMCastFilterCount,
		NvRAMSize:           512,
		NvRAMAccessSize:     4,
		RxQueueDepth:        64,
		TxQueueDepth:        32,
		MediaPresent:        true,
		AddressChangeable:   true,
		Unsupported: []snp.Counter{
			snp.RxCrcErrorFrames,
			snp.TxCrcErrorFrames,
			snp.RxDecryptErrorFrames,
			snp.RxDuplicatedFrames,
		},
	}
}

// TransmitRecord describes the last frame handed to the emulated hardware.
type TransmitRecord struct {
	HeaderSize uint   `json:"header_size"`
	BufferSize uint   `json:"buffer_size"`
	Frame      []byte `json:"frame"`
}

// NIC emulates one Simple Network Protocol instance.
type NIC struct {
	mu     sync.Mutex
	fw     *Firmware
	logger *zap.Logger
	cfg    NICConfig

	table  *snp.Table
	mode   *snp.NetworkMode
	handle efi.Handle

	stats       snp.NetworkStats
	unsupported map[snp.Counter]bool
	nvram       []byte
	rx          [][]byte
	recycled    []unsafe.Pointer
	interrupts  snp.InterruptStatus
	extraRx     uint64
	extraTx     uint64
	last        *TransmitRecord
	failNext    map[string]efi.Status
}

// NewNIC builds a NIC, registers its entry points with fw and installs the
// protocol on a new handle.
func NewNIC(fw *Firmware, cfg NICConfig) *NIC {
	if cfg.MaxMCastFilterCount > snp.MaxMCastFilterCount {
		cfg.MaxMCastFilterCount = snp.MaxMCastFilterCount
	}
	if cfg.RxQueueDepth <= 0 {
		cfg.RxQueueDepth = 64
	}
	if cfg.TxQueueDepth <= 0 {
		cfg.TxQueueDepth = 32
	}

	n := &NIC{
		fw:          fw,
		logger:      fw.logger.With(zap.String("device", cfg.MAC.String())),
		cfg:         cfg,
		unsupported: make(map[snp.Counter]bool),
		nvram:       make([]byte, cfg.NvRAMSize),
		failNext:    make(map[string]efi.Status),
	}
	for _, c := range cfg.Unsupported {
		n.unsupported[c] = true
	}
	n.resetStats()

	n.mode = &snp.NetworkMode{
		State:                 snp.Stopped,
		HwAddressSize:         ethernetAddrSize,
		MediaHeaderSize:       ethernetHeaderSize,
		MaxPacketSize:         cfg.MaxPacketSize,
		NvRAMSize:             cfg.NvRAMSize,
		NvRAMAccessSize:       cfg.NvRAMAccessSize,
		ReceiveFilterMask:     snp.ReceiveUnicast | snp.ReceiveMulticast | snp.ReceiveBroadcast | snp.ReceivePromiscuous | snp.ReceivePromiscuousMulticast,
		MaxMCastFilterCount:   cfg.MaxMCastFilterCount,
		CurrentAddress:        cfg.MAC,
		PermanentAddress:      cfg.MAC,
		IfType:                1,
		MacAddressChangeable:  boolean(cfg.AddressChangeable),
		MultipleTxSupported:   1,
		MediaPresentSupported: 1,
		MediaPresent:          boolean(cfg.MediaPresent),
	}
	copy(n.mode.BroadcastAddress[:ethernetAddrSize], []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})

	n.table = &snp.Table{
		Revision:       snp.Revision,
		Start:          fw.Register("SNP.Start", true, n.start),
		Stop:           fw.Register("SNP.Stop", true, n.stop),
		Initialize:     fw.Register("SNP.Initialize", true, n.initialize),
		Reset:          fw.Register("SNP.Reset", true, n.reset),
		Shutdown:       fw.Register("SNP.Shutdown", true, n.shutdown),
		ReceiveFilters: fw.Register("SNP.ReceiveFilters", true, n.receiveFilters),
		StationAddress: fw.Register("SNP.StationAddress", true, n.stationAddress),
		Statistics:     fw.Register("SNP.Statistics", true, n.statistics),
		MCastIPToMAC:   fw.Register("SNP.MCastIPtoMAC", true, n.mcastIPToMAC),
		NvData:         fw.Register("SNP.NvData", true, n.nvData),
		GetStatus:      fw.Register("SNP.GetStatus", true, n.getStatus),
		Transmit:       fw.Register("SNP.Transmit", true, n.transmit),
		Receive:        fw.Register("SNP.Receive", true, n.receive),
		WaitForPacket:  efi.Event(0xe7e70000),
		Mode:           n.mode,
	}
	n.handle = fw.Install(snp.ProtocolGUID, unsafe.Pointer(n.table))

	return n
}

func boolean(b bool) snp.Boolean {
	if b {
		return 1
	}
	return 0
}

// Handle returns the handle the protocol is installed on.
func (n *NIC) Handle() efi.Handle {
	return n.handle
}

// State returns the interface state.
func (n *NIC) State() snp.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mode.State
}

// FailNext makes the next call to the named entry point, such as
// "Statistics", return status without side effects.
func (n *NIC) FailNext(function string, status efi.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failNext[function] = status
}

// LastTransmit returns the most recent transmit, if any.
func (n *NIC) LastTransmit() (TransmitRecord, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.last == nil {
		return TransmitRecord{}, false
	}
	rec := *n.last
	rec.Frame = bytes.Clone(n.last.Frame)
	return rec, true
}

// RxQueued returns the number of frames waiting to be received.
func (n *NIC) RxQueued() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rx)
}

// Inject delivers a frame from the wire, subject to the receive filters.
func (n *NIC) Inject(frame []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.mode.State != snp.Initialized {
		return ErrNotRunning
	}
	if len(frame) < ethernetHeaderSize {
		n.bump(snp.RxUndersizeFrames, 1)
		return ErrShortFrame
	}
	if !n.deliver(bytes.Clone(frame)) {
		return ErrQueueFull
	}
	return nil
}

// deliver applies the receive filters and queues the frame. It reports
// false only when the queue overflowed.
func (n *NIC) deliver(frame []byte) bool {
	n.bump(snp.RxTotalFrames, 1)

	if uint32(len(frame)) > n.mode.MaxPacketSize+n.mode.MediaHeaderSize {
		n.bump(snp.RxOversizeFrames, 1)
		return true
	}

	dst := frame[:ethernetAddrSize]
	setting := n.mode.ReceiveFilterSetting

	var counter snp.Counter
	accepted := setting.Has(snp.ReceivePromiscuous)
	switch {
	case bytes.Equal(dst, n.mode.BroadcastAddress[:ethernetAddrSize]):
		counter = snp.RxBroadcastFrames
		accepted = accepted || setting.Has(snp.ReceiveBroadcast)
	case dst[0]&0x01 != 0:
		counter = snp.RxMulticastFrames
		accepted = accepted || setting.Has(snp.ReceivePromiscuousMulticast) ||
			(setting.Has(snp.ReceiveMulticast) && n.mcastMatch(dst))
	default:
		counter = snp.RxUnicastFrames
		accepted = accepted || (setting.Has(snp.ReceiveUnicast) &&
			bytes.Equal(dst, n.mode.CurrentAddress[:ethernetAddrSize]))
	}

	if !accepted {
		n.bump(snp.RxDroppedFrames, 1)
		return true
	}
	if len(n.rx) >= n.cfg.RxQueueDepth {
		n.bump(snp.RxDroppedFrames, 1)
		return false
	}

	n.rx = append(n.rx, frame)
	n.interrupts |= snp.ReceiveInterrupt
	n.bump(snp.RxGoodFrames, 1)
	n.bump(counter, 1)
	n.bump(snp.RxTotalBytes, uint64(len(frame)))
	return true
}

func (n *NIC) mcastMatch(dst []byte) bool {
	for _, f := range n.mode.MulticastFilters() {
		if bytes.Equal(dst, f[:ethernetAddrSize]) {
			return true
		}
	}
	return false
}

func (n *NIC) bump(c snp.Counter, delta uint64) {
	if n.unsupported[c] {
		return
	}
	n.stats.Counters[c] += delta
}

func (n *NIC) resetStats() {
	for c := snp.Counter(0); c < snp.CounterCount; c++ {
		if n.unsupported[c] {
			n.stats.Counters[c] = snp.Unsupported
		} else {
			n.stats.Counters[c] = 0
		}
	}
}

// enter validates the This pointer and argument count, consumes an injected
// failure, and locks the NIC. The caller must unlock on success.
func (n *NIC) enter(name string, args []efi.Arg, want int) efi.Status {
	if len(args) != want+1 || args[0].Pointer() != unsafe.Pointer(n.table) {
		n.fw.violate("SNP.%s called with a bad argument list", name)
		return efi.InvalidParameter
	}

	n.mu.Lock()
	if status, ok := n.failNext[name]; ok {
		delete(n.failNext, name)
		n.mu.Unlock()
		return status
	}
	return efi.Success
}

// requireInitialized maps the state to the status EDK2 drivers report.
func (n *NIC) requireInitialized() efi.Status {
	switch n.mode.State {
	case snp.Initialized:
		return efi.Success
	case snp.Stopped:
		return efi.NotStarted
	default:
		return efi.DeviceError
	}
}

func (n *NIC) start(args []efi.Arg) efi.Status {
	if s := n.enter("Start", args, 0); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if n.mode.State != snp.Stopped {
		return efi.AlreadyStarted
	}
	n.mode.State = snp.Started
	return efi.Success
}

func (n *NIC) stop(args []efi.Arg) efi.Status {
	if s := n.enter("Stop", args, 0); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	switch n.mode.State {
	case snp.Started:
		n.mode.State = snp.Stopped
		return efi.Success
	case snp.Stopped:
		return efi.NotStarted
	default:
		return efi.DeviceError
	}
}

func (n *NIC) initialize(args []efi.Arg) efi.Status {
	if s := n.enter("Initialize", args, 2); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	switch n.mode.State {
	case snp.Started:
	case snp.Stopped:
		return efi.NotStarted
	default:
		return efi.DeviceError
	}

	n.extraRx = args[1].Uint()
	n.extraTx = args[2].Uint()
	n.mode.State = snp.Initialized
	n.mode.MediaPresent = boolean(n.cfg.MediaPresent)

	n.logger.Debug("Interface initialized",
		zap.Uint64("extra_rx", n.extraRx),
		zap.Uint64("extra_tx", n.extraTx),
	)
	return efi.Success
}

func (n *NIC) reset(args []efi.Arg) efi.Status {
	if s := n.enter("Reset", args, 1); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}
	n.rx = nil
	n.interrupts = 0
	return efi.Success
}

func (n *NIC) shutdown(args []efi.Arg) efi.Status {
	if s := n.enter("Shutdown", args, 0); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}
	n.rx = nil
	n.recycled = nil
	n.interrupts = 0
	n.mode.ReceiveFilterSetting = 0
	n.mode.MCastFilterCount = 0
	n.mode.MCastFilter = [snp.MaxMCastFilterCount]snp.MacAddress{}
	n.mode.State = snp.Started
	return efi.Success
}

func (n *NIC) receiveFilters(args []efi.Arg) efi.Status {
	if s := n.enter("ReceiveFilters", args, 5); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}

	enable := snp.ReceiveFilter(args[1].Uint())
	disable := snp.ReceiveFilter(args[2].Uint())
	resetMCast := args[3].Bool()
	list := efi.DerefSlice[snp.MacAddress](args[4], args[5])

	if (enable|disable)&^n.mode.ReceiveFilterMask != 0 {
		return efi.InvalidParameter
	}
	if args[4].Uint() != 0 && list == nil {
		return efi.InvalidParameter
	}
	if !resetMCast {
		if uint32(len(list)) > n.mode.MaxMCastFilterCount {
			return efi.InvalidParameter
		}
		for _, m := range list {
			if m[0]&0x01 == 0 {
				return efi.InvalidParameter
			}
		}
	}

	n.mode.ReceiveFilterSetting = (n.mode.ReceiveFilterSetting | enable) &^ disable
	switch {
	case resetMCast:
		n.mode.MCastFilterCount = 0
		n.mode.MCastFilter = [snp.MaxMCastFilterCount]snp.MacAddress{}
	case len(list) > 0:
		n.mode.MCastFilter = [snp.MaxMCastFilterCount]snp.MacAddress{}
		copy(n.mode.MCastFilter[:], list)
		n.mode.MCastFilterCount = uint32(len(list))
	}
	return efi.Success
}

func (n *NIC) stationAddress(args []efi.Arg) efi.Status {
	if s := n.enter("StationAddress", args, 2); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}
	if !n.mode.MacAddressChangeable.Bool() {
		return efi.Unsupported
	}

	if args[1].Bool() {
		n.mode.CurrentAddress = n.mode.PermanentAddress
		return efi.Success
	}
	addr := efi.Deref[snp.MacAddress](args[2])
	if addr == nil || addr[0]&0x01 != 0 {
		return efi.InvalidParameter
	}
	n.mode.CurrentAddress = *addr
	return efi.Success
}

func (n *NIC) statistics(args []efi.Arg) efi.Status {
	if s := n.enter("Statistics", args, 3); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}

	reset := args[1].Bool()
	size := efi.Deref[uintptr](args[2])
	table := efi.Deref[snp.NetworkStats](args[3])
	want := unsafe.Sizeof(snp.NetworkStats{})

	if size == nil {
		if !reset {
			return efi.InvalidParameter
		}
		n.resetStats()
		return efi.Success
	}
	if *size < want {
		*size = want
		return efi.BufferTooSmall
	}
	if table == nil {
		return efi.InvalidParameter
	}

	*table = n.stats
	*size = want
	if reset {
		n.resetStats()
	}
	return efi.Success
}

func (n *NIC) mcastIPToMAC(args []efi.Arg) efi.Status {
	if s := n.enter("MCastIPtoMAC", args, 3); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if n.mode.State == snp.Stopped {
		return efi.NotStarted
	}

	ipv6 := args[1].Bool()
	ip := efi.Deref[snp.IPAddress](args[2])
	mac := efi.Deref[snp.MacAddress](args[3])
	if ip == nil || mac == nil {
		return efi.InvalidParameter
	}

	m, ok := MulticastMAC(ip.Addr(ipv6))
	if !ok {
		return efi.InvalidParameter
	}
	*mac = m
	return efi.Success
}

func (n *NIC) nvData(args []efi.Arg) efi.Status {
	if s := n.enter("NvData", args, 4); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}
	if len(n.nvram) == 0 {
		return efi.Unsupported
	}

	read := args[1].Bool()
	offset := args[2].Uint()
	size := args[3].Uint()
	access := uint64(n.mode.NvRAMAccessSize)

	if size == 0 || offset+size > uint64(len(n.nvram)) || offset+size < offset {
		return efi.InvalidParameter
	}
	if access > 1 && (offset%access != 0 || size%access != 0) {
		return efi.InvalidParameter
	}

	buf := args[4].Bytes(int(size))
	if buf == nil {
		return efi.InvalidParameter
	}
	if read {
		copy(buf, n.nvram[offset:offset+size])
	} else {
		copy(n.nvram[offset:offset+size], buf)
	}
	return efi.Success
}

func (n *NIC) getStatus(args []efi.Arg) efi.Status {
	if s := n.enter("GetStatus", args, 2); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}

	if intr := efi.Deref[snp.InterruptStatus](args[1]); intr != nil {
		*intr = n.interrupts
		n.interrupts = 0
	}
	if txBuf := efi.Deref[unsafe.Pointer](args[2]); txBuf != nil {
		*txBuf = nil
		if len(n.recycled) > 0 {
			*txBuf = n.recycled[0]
			n.recycled = n.recycled[1:]
		}
	}
	return efi.Success
}

func (n *NIC) transmit(args []efi.Arg) efi.Status {
	if s := n.enter("Transmit", args, 6); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}

	headerSize := args[1].Uint()
	bufferSize := args[2].Uint()
	src := efi.Deref[snp.MacAddress](args[4])
	dst := efi.Deref[snp.MacAddress](args[5])
	proto := efi.Deref[uint16](args[6])

	if bufferSize < uint64(n.mode.MediaHeaderSize) {
		n.bump(snp.TxUndersizeFrames, 1)
		return efi.BufferTooSmall
	}
	if bufferSize > uint64(n.mode.MaxPacketSize+n.mode.MediaHeaderSize) {
		n.bump(snp.TxOversizeFrames, 1)
		return efi.InvalidParameter
	}
	if headerSize != 0 && (headerSize != uint64(n.mode.MediaHeaderSize) || dst == nil || proto == nil) {
		return efi.InvalidParameter
	}

	frame := args[3].Bytes(int(bufferSize))
	if frame == nil {
		return efi.InvalidParameter
	}
	if len(n.recycled) >= n.cfg.TxQueueDepth {
		n.bump(snp.TxDroppedFrames, 1)
		return efi.NotReady
	}

	if headerSize != 0 {
		if src == nil {
			src = &n.mode.CurrentAddress
		}
		putEthernetHeader(frame, *dst, *src, *proto)
	}

	sent := bytes.Clone(frame)
	n.last = &TransmitRecord{HeaderSize: uint(headerSize), BufferSize: uint(bufferSize), Frame: sent}
	n.recycled = append(n.recycled, args[3].Pointer())
	n.interrupts |= snp.TransmitInterrupt

	n.bump(snp.TxTotalFrames, 1)
	n.bump(snp.TxGoodFrames, 1)
	n.bump(snp.TxTotalBytes, bufferSize)
	switch {
	case bytes.Equal(sent[:ethernetAddrSize], n.mode.BroadcastAddress[:ethernetAddrSize]):
		n.bump(snp.TxBroadcastFrames, 1)
	case sent[0]&0x01 != 0:
		n.bump(snp.TxMulticastFrames, 1)
	default:
		n.bump(snp.TxUnicastFrames, 1)
	}

	if n.cfg.Loopback {
		n.deliver(bytes.Clone(sent))
	}
	return efi.Success
}

func (n *NIC) receive(args []efi.Arg) efi.Status {
	if s := n.enter("Receive", args, 6); s != efi.Success {
		return s
	}
	defer n.mu.Unlock()

	if s := n.requireInitialized(); s != efi.Success {
		return s
	}

	size := efi.Deref[uintptr](args[2])
	if size == nil || args[3].Pointer() == nil {
		return efi.InvalidParameter
	}
	if len(n.rx) == 0 {
		return efi.NotReady
	}

	frame := n.rx[0]
	if uintptr(len(frame)) > *size {
		*size = uintptr(len(frame))
		return efi.BufferTooSmall
	}
	n.rx = n.rx[1:]

	copy(args[3].Bytes(len(frame)), frame)
	*size = uintptr(len(frame))

	if hdr := efi.Deref[uintptr](args[1]); hdr != nil {
		*hdr = uintptr(n.mode.MediaHeaderSize)
	}
	dst, src, proto := parseEthernetHeader(frame)
	if p := efi.Deref[snp.MacAddress](args[4]); p != nil {
		*p = src
	}
	if p := efi.Deref[snp.MacAddress](args[5]); p != nil {
		*p = dst
	}
	if p := efi.Deref[uint16](args[6]); p != nil {
		*p = proto
	}
	return efi.Success
}

func putEthernetHeader(frame []byte, dst, src snp.MacAddress, proto uint16) {
	copy(frame[0:6], dst[:ethernetAddrSize])
	copy(frame[6:12], src[:ethernetAddrSize])
	binary.BigEndian.PutUint16(frame[12:14], proto)
}

func parseEthernetHeader(frame []byte) (dst, src snp.MacAddress, proto uint16) {
	copy(dst[:], frame[0:6])
	copy(src[:], frame[6:12])
	proto = binary.BigEndian.Uint16(frame[12:14])
	return dst, src, proto
}

// BuildFrame assembles an Ethernet frame.
func BuildFrame(dst, src snp.MacAddress, proto uint16, payload []byte) []byte {
	frame := make([]byte, ethernetHeaderSize+len(payload))
	putEthernetHeader(frame, dst, src, proto)
	copy(frame[ethernetHeaderSize:], payload)
	return frame
}

// String describes the NIC for logs.
func (n *NIC) String() string {
	return fmt.Sprintf("sim-nic(%s, handle %#x)", n.cfg.MAC, uint64(n.handle))
}

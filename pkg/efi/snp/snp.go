// pkg/efi/snp/snp.go
package snp

import (
	"errors"
	"fmt"
	"unsafe"

	"efi-access/pkg/efi"
)

// ProtocolGUID identifies EFI_SIMPLE_NETWORK_PROTOCOL.
var ProtocolGUID = efi.MustParseGUID("a19832b9-ac25-11d3-9a2d-0090273fc14d")

// Revision is EFI_SIMPLE_NETWORK_PROTOCOL_REVISION.
const Revision uint64 = 0x00010000

var (
	// ErrSizeMismatch is returned when firmware reports more bytes than the
	// caller's buffer holds.
	ErrSizeMismatch = errors.New("snp: firmware reported a size larger than the buffer")

	// ErrForeignBuffer is returned when firmware recycles a transmit buffer
	// this binding did not queue.
	ErrForeignBuffer = errors.New("snp: recycled transmit buffer was not queued by this binding")
)

// Table is the EFI_SIMPLE_NETWORK_PROTOCOL layout. Field order is part of
// the firmware ABI.
type Table struct {
	Revision       uint64
	Start          uintptr
	Stop           uintptr
	Initialize     uintptr
	Reset          uintptr
	Shutdown       uintptr
	ReceiveFilters uintptr
	StationAddress uintptr
	Statistics     uintptr
	MCastIPToMAC   uintptr
	NvData         uintptr
	GetStatus      uintptr
	Transmit       uintptr
	Receive        uintptr
	WaitForPacket  efi.Event
	Mode           *NetworkMode
}

// SimpleNetwork is a binding to one SNP instance. Like the firmware it
// wraps, it must not be used from more than one goroutine at a time.
type SimpleNetwork struct {
	iface *efi.Interface
	table *Table

	// frames queued for transmit, keyed by the address handed to firmware,
	// kept alive until firmware recycles them
	pending map[unsafe.Pointer][]byte
}

// Bind wraps a located SNP interface.
func Bind(iface *efi.Interface) (*SimpleNetwork, error) {
	if iface.GUID() != ProtocolGUID {
		return nil, fmt.Errorf("snp: cannot bind protocol %s", iface.GUID())
	}

	return &SimpleNetwork{
		iface:   iface,
		table:   (*Table)(iface.Pointer()),
		pending: make(map[unsafe.Pointer][]byte),
	}, nil
}

// Open binds the first SNP instance firmware reports.
func Open(t *efi.BootTable) (*SimpleNetwork, error) {
	return efi.OpenProtocol(t, ProtocolGUID, Bind)
}

// OpenAll binds every SNP instance, one per network interface.
func OpenAll(t *efi.BootTable) ([]*SimpleNetwork, error) {
	handles, err := t.LocateHandles(ProtocolGUID)
	if err != nil {
		return nil, err
	}

	nics := make([]*SimpleNetwork, 0, len(handles))
	for _, h := range handles {
		nic, err := efi.OpenProtocolOn(t, h, ProtocolGUID, Bind)
		if err != nil {
			return nil, err
		}
		nics = append(nics, nic)
	}

	return nics, nil
}

// live returns the table once the binding is known to be inside its
// validity window.
func (n *SimpleNetwork) live() (*Table, error) {
	if err := n.iface.Check(); err != nil {
		return nil, err
	}
	return n.table, nil
}

// Handle returns the handle the protocol is installed on, if known.
func (n *SimpleNetwork) Handle() efi.Handle {
	return n.iface.Handle()
}

// Revision returns the protocol revision.
func (n *SimpleNetwork) Revision() (uint64, error) {
	t, err := n.live()
	if err != nil {
		return 0, err
	}
	return t.Revision, nil
}

// WaitForPacket returns the event firmware signals when a packet is
// available. It is never waited on here.
func (n *SimpleNetwork) WaitForPacket() (efi.Event, error) {
	t, err := n.live()
	if err != nil {
		return 0, err
	}
	return t.WaitForPacket, nil
}

// Mode borrows the firmware's mode structure. The pointer must not be kept
// past a shutdown or the exit of boot services.
func (n *SimpleNetwork) Mode() (*NetworkMode, error) {
	t, err := n.live()
	if err != nil {
		return nil, err
	}
	if t.Mode == nil {
		return nil, &efi.StatusError{Status: efi.NotReady}
	}
	return t.Mode, nil
}

// Start changes the interface from Stopped to Started.
func (n *SimpleNetwork) Start() error {
	t, err := n.live()
	if err != nil {
		return err
	}
	return n.iface.Call(t.Start)
}

// Stop changes the interface from Started to Stopped.
func (n *SimpleNetwork) Stop() error {
	t, err := n.live()
	if err != nil {
		return err
	}
	return n.iface.Call(t.Stop)
}

// Initialize allocates the interface's transmit and receive buffers, plus
// the optional extra sizes, and moves it from Started to Initialized.
func (n *SimpleNetwork) Initialize(extraRx, extraTx *uint) error {
	t, err := n.live()
	if err != nil {
		return err
	}
	if extraRx != nil && *extraRx == 0 {
		return &efi.ArgumentError{Op: "snp.Initialize", Reason: "extra receive buffer size must be positive when supplied"}
	}
	if extraTx != nil && *extraTx == 0 {
		return &efi.ArgumentError{Op: "snp.Initialize", Reason: "extra transmit buffer size must be positive when supplied"}
	}

	return n.iface.Call(t.Initialize, efi.OptionalCount(extraRx), efi.OptionalCount(extraTx))
}

// Reset reinitializes the interface with the parameters of the previous
// Initialize.
func (n *SimpleNetwork) Reset(extendedVerification bool) error {
	t, err := n.live()
	if err != nil {
		return err
	}
	return n.iface.Call(t.Reset, efi.Bool(extendedVerification))
}

// Shutdown releases the interface's buffers and returns it to Started, safe
// for another driver to initialize. Queued transmit frames are dropped.
func (n *SimpleNetwork) Shutdown() error {
	t, err := n.live()
	if err != nil {
		return err
	}
	if err := n.iface.Call(t.Shutdown); err != nil {
		return err
	}

	clear(n.pending)
	return nil
}

// ReceiveFilters enables and disables receive filters and optionally
// replaces the multicast filter list. An empty mcast is passed as a null
// list; so is any list when resetMCast is set.
func (n *SimpleNetwork) ReceiveFilters(enable, disable ReceiveFilter, resetMCast bool, mcast []MacAddress) error {
	t, err := n.live()
	if err != nil {
		return err
	}

	if len(mcast) > 0 {
		capacity := MaxMCastFilterCount
		if t.Mode != nil {
			capacity = t.Mode.MulticastCapacity()
		}
		if len(mcast) > capacity {
			return &efi.ArgumentError{
				Op:     "snp.ReceiveFilters",
				Reason: fmt.Sprintf("%d multicast filters exceed the device capacity of %d", len(mcast), capacity),
			}
		}
	}
	if resetMCast {
		// firmware ignores the list on reset
		mcast = nil
	}

	count, list := efi.OptionalSlice(mcast)
	return n.iface.Call(t.ReceiveFilters,
		efi.Word(uint64(enable)),
		efi.Word(uint64(disable)),
		efi.Bool(resetMCast),
		count,
		list,
	)
}

// StationAddress sets the current hardware address, or resets it to the
// permanent one when reset is true.
func (n *SimpleNetwork) StationAddress(reset bool, addr *MacAddress) error {
	t, err := n.live()
	if err != nil {
		return err
	}
	if !reset && addr == nil {
		return &efi.ArgumentError{Op: "snp.StationAddress", Reason: "a new address is required unless resetting"}
	}
	if reset {
		addr = nil
	}

	return n.iface.Call(t.StationAddress, efi.Bool(reset), efi.Optional(addr))
}

// ResetStatistics zeroes the interface's statistics.
func (n *SimpleNetwork) ResetStatistics() error {
	t, err := n.live()
	if err != nil {
		return err
	}
	return n.iface.Call(t.Statistics, efi.Bool(true), efi.Optional[uintptr](nil), efi.Optional[NetworkStats](nil))
}

// CollectStatistics reads the interface's statistics into a zeroed table.
// Nothing is returned unless firmware reports success.
func (n *SimpleNetwork) CollectStatistics() (*NetworkStats, error) {
	t, err := n.live()
	if err != nil {
		return nil, err
	}

	stats := new(NetworkStats)
	size := unsafe.Sizeof(*stats)

	status, err := n.iface.Invoke(t.Statistics, efi.Bool(false), efi.Optional(&size), efi.Optional(stats))
	if err != nil {
		return nil, err
	}

	return efi.FromStatusValue(status, stats)
}

// McastIPToMAC asks firmware for the multicast MAC address of a multicast
// IP address.
func (n *SimpleNetwork) McastIPToMAC(ipv6 bool, ip IPAddress) (MacAddress, error) {
	t, err := n.live()
	if err != nil {
		return MacAddress{}, err
	}

	var mac MacAddress
	status, err := n.iface.Invoke(t.MCastIPToMAC, efi.Bool(ipv6), efi.Optional(&ip), efi.Optional(&mac))
	if err != nil {
		return MacAddress{}, err
	}

	return efi.FromStatusValue(status, mac)
}

// ReadNVData reads len(buf) bytes of the interface's NVRAM at offset.
// Bounds are checked by firmware.
func (n *SimpleNetwork) ReadNVData(offset uint, buf []byte) error {
	return n.nvData("snp.ReadNVData", true, offset, buf)
}

// WriteNVData writes buf to the interface's NVRAM at offset.
func (n *SimpleNetwork) WriteNVData(offset uint, buf []byte) error {
	return n.nvData("snp.WriteNVData", false, offset, buf)
}

func (n *SimpleNetwork) nvData(op string, read bool, offset uint, buf []byte) error {
	t, err := n.live()
	if err != nil {
		return err
	}
	if len(buf) == 0 {
		return &efi.ArgumentError{Op: op, Reason: "buffer is empty"}
	}

	return n.iface.Call(t.NvData,
		efi.Bool(read),
		efi.Uintn(uintptr(offset)),
		efi.Uintn(uintptr(len(buf))),
		efi.Pointer(unsafe.Pointer(unsafe.SliceData(buf))),
	)
}

// GetStatus reads the interrupt status and/or the next recycled transmit
// buffer. Either destination may be nil to decline it.
func (n *SimpleNetwork) GetStatus(interrupts *InterruptStatus, txBuf *unsafe.Pointer) error {
	t, err := n.live()
	if err != nil {
		return err
	}
	return n.iface.Call(t.GetStatus, efi.Optional(interrupts), efi.Optional(txBuf))
}

// InterruptStatus reads and clears the interface's interrupt status.
func (n *SimpleNetwork) InterruptStatus() (InterruptStatus, error) {
	var status InterruptStatus
	if err := n.GetStatus(&status, nil); err != nil {
		return 0, err
	}
	return status, nil
}

// RecycledTransmitBuffer returns the next frame firmware has finished
// transmitting, or nil when none is waiting.
func (n *SimpleNetwork) RecycledTransmitBuffer() ([]byte, error) {
	var buf unsafe.Pointer
	if err := n.GetStatus(nil, &buf); err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}

	frame, ok := n.pending[buf]
	if !ok {
		return nil, fmt.Errorf("%w: %p", ErrForeignBuffer, buf)
	}

	delete(n.pending, buf)
	return frame, nil
}

// Pending returns the number of queued frames not yet recycled.
func (n *SimpleNetwork) Pending() int {
	return len(n.pending)
}

// Transmit queues a packet. When headerSize is non-zero firmware fills in
// the media header from src, dst and proto; firmware decides which of them
// it needs and src defaults to the current address.
//
// The frame handed to firmware is headerSize+len(payload) bytes: header
// space followed by a copy of payload. It stays referenced by the binding
// until firmware recycles it.
func (n *SimpleNetwork) Transmit(headerSize uint, payload []byte, src, dst *MacAddress, proto *uint16) error {
	t, err := n.live()
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return &efi.ArgumentError{Op: "snp.Transmit", Reason: "payload is empty"}
	}
	frame := make([]byte, int(headerSize)+len(payload))
	copy(frame[headerSize:], payload)

	key := unsafe.Pointer(unsafe.SliceData(frame))
	n.pending[key] = frame

	err = n.iface.Call(t.Transmit,
		efi.Uintn(uintptr(headerSize)),
		efi.Uintn(uintptr(len(frame))),
		efi.Pointer(key),
		efi.Optional(src),
		efi.Optional(dst),
		efi.Optional(proto),
	)
	if err != nil {
		delete(n.pending, key)
		return err
	}

	return nil
}

// Receive reads one packet into buf and returns its length. The optional
// destinations receive the media header size, the source and destination
// addresses and the protocol. On any failure, including a too-small
// buffer, nothing firmware wrote is reported.
func (n *SimpleNetwork) Receive(buf []byte, headerSize *uint, src, dst *MacAddress, proto *uint16) (int, error) {
	t, err := n.live()
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, &efi.ArgumentError{Op: "snp.Receive", Reason: "buffer is empty"}
	}

	size := uintptr(len(buf))

	var header uintptr
	headerArg := efi.Optional[uintptr](nil)
	if headerSize != nil {
		headerArg = efi.Optional(&header)
	}

	status, err := n.iface.Invoke(t.Receive,
		headerArg,
		efi.Optional(&size),
		efi.Pointer(unsafe.Pointer(unsafe.SliceData(buf))),
		efi.Optional(src),
		efi.Optional(dst),
		efi.Optional(proto),
	)
	if err != nil {
		return 0, err
	}
	if err := efi.FromStatus(status); err != nil {
		return 0, err
	}
	if size > uintptr(len(buf)) {
		return 0, fmt.Errorf("%w: %d > %d", ErrSizeMismatch, size, len(buf))
	}

	if headerSize != nil {
		*headerSize = uint(header)
	}
	return int(size), nil
}

// pkg/efi/snp/types.go
package snp

import (
	"fmt"
	"net"
	"net/netip"
)

// MacAddress is EFI_MAC_ADDRESS: 32 bytes, of which the mode's
// HwAddressSize are significant.
type MacAddress [32]byte

// MacFrom builds a MacAddress from a hardware address.
func MacFrom(hw net.HardwareAddr) (MacAddress, error) {
	var m MacAddress
	if len(hw) == 0 || len(hw) > len(m) {
		return m, fmt.Errorf("invalid hardware address length %d", len(hw))
	}

	copy(m[:], hw)
	return m, nil
}

// ParseMac parses a textual hardware address such as 52:54:00:12:34:56.
func ParseMac(s string) (MacAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MacAddress{}, fmt.Errorf("failed to parse MAC address %q: %w", s, err)
	}

	return MacFrom(hw)
}

// HardwareAddr returns the first n bytes as a net.HardwareAddr.
func (m MacAddress) HardwareAddr(n int) net.HardwareAddr {
	if n <= 0 || n > len(m) {
		n = 6
	}

	hw := make(net.HardwareAddr, n)
	copy(hw, m[:n])
	return hw
}

// String formats the address as a 6-byte Ethernet address.
func (m MacAddress) String() string {
	return m.HardwareAddr(6).String()
}

// IPAddress is EFI_IP_ADDRESS: 16 bytes, an IPv4 address uses the first
// four.
type IPAddress [16]byte

// IPFrom converts a netip address. The second result reports IPv6.
func IPFrom(addr netip.Addr) (IPAddress, bool) {
	var ip IPAddress

	if addr.Is4() || addr.Is4In6() {
		v4 := addr.Unmap().As4()
		copy(ip[:], v4[:])
		return ip, false
	}

	v6 := addr.As16()
	copy(ip[:], v6[:])
	return ip, true
}

// Addr converts back to a netip address.
func (ip IPAddress) Addr(ipv6 bool) netip.Addr {
	if ipv6 {
		return netip.AddrFrom16(ip)
	}

	return netip.AddrFrom4([4]byte{ip[0], ip[1], ip[2], ip[3]})
}

// Boolean is the firmware's one-byte BOOLEAN.
type Boolean uint8

// Bool treats any non-zero byte as true.
func (b Boolean) Bool() bool {
	return b != 0
}

// State is EFI_SIMPLE_NETWORK_STATE.
type State uint32

const (
	Stopped State = iota
	Started
	Initialized
	// MaxState bounds the valid states.
	MaxState State = 4
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Started:
		return "started"
	case Initialized:
		return "initialized"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// ReceiveFilter is the bitmask of frame classes delivered by the interface.
type ReceiveFilter uint32

const (
	ReceiveUnicast              ReceiveFilter = 0x01
	ReceiveMulticast            ReceiveFilter = 0x02
	ReceiveBroadcast            ReceiveFilter = 0x04
	ReceivePromiscuous          ReceiveFilter = 0x08
	ReceivePromiscuousMulticast ReceiveFilter = 0x10
)

// Has reports whether every bit of f is set.
func (r ReceiveFilter) Has(f ReceiveFilter) bool {
	return r&f == f
}

// InterruptStatus is the interrupt bitmask reported by GetStatus. Bits above
// 3 are reserved.
type InterruptStatus uint32

const (
	ReceiveInterrupt  InterruptStatus = 0x01
	TransmitInterrupt InterruptStatus = 0x02
	CommandInterrupt  InterruptStatus = 0x04
	SoftwareInterrupt InterruptStatus = 0x08
)

// Receive reports a pending receive interrupt.
func (s InterruptStatus) Receive() bool {
	return s&ReceiveInterrupt != 0
}

// Transmit reports a pending transmit interrupt.
func (s InterruptStatus) Transmit() bool {
	return s&TransmitInterrupt != 0
}

// Command reports a pending command interrupt.
func (s InterruptStatus) Command() bool {
	return s&CommandInterrupt != 0
}

// Software reports a pending software interrupt.
func (s InterruptStatus) Software() bool {
	return s&SoftwareInterrupt != 0
}

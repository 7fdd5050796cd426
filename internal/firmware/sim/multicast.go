// internal/firmware/sim/multicast.go
package sim

import (
	"net/netip"

	"efi-access/pkg/efi/snp"
)

// MulticastMAC maps a multicast group address to its Ethernet address:
// 01:00:5e plus the low 23 bits for IPv4 (RFC 1112), 33:33 plus the last
// four bytes for IPv6 (RFC 2464).
func MulticastMAC(addr netip.Addr) (snp.MacAddress, bool) {
	var mac snp.MacAddress
	if !addr.IsMulticast() {
		return mac, false
	}

	if addr.Is4() {
		ip := addr.As4()
		mac[0], mac[1], mac[2] = 0x01, 0x00, 0x5e
		mac[3] = ip[1] & 0x7f
		mac[4] = ip[2]
		mac[5] = ip[3]
		return mac, true
	}

	ip := addr.As16()
	mac[0], mac[1] = 0x33, 0x33
	copy(mac[2:6], ip[12:16])
	return mac, true
}

// pkg/efi/snp/mode.go
package snp

// MaxMCastFilterCount is the capacity of the mode's multicast filter array.
const MaxMCastFilterCount = 16

// NetworkMode is EFI_SIMPLE_NETWORK_MODE. It is owned by firmware and only
// ever borrowed; reads are best-effort snapshots.
type NetworkMode struct {
	// Current state of the interface
	State State
	// Size of the hardware address in bytes
	HwAddressSize uint32
	// Size of the media header in bytes
	MediaHeaderSize uint32
	// Maximum packet size, media header excluded
	MaxPacketSize uint32
	// Size of the attached NVRAM in bytes
	NvRAMSize uint32
	// Granularity of NVRAM reads and writes
	NvRAMAccessSize uint32
	// Receive filters the interface supports
	ReceiveFilterMask ReceiveFilter
	// Receive filters currently enabled
	ReceiveFilterSetting ReceiveFilter
	// Number of multicast filters the driver supports
	MaxMCastFilterCount uint32
	// Number of multicast filters in use
	MCastFilterCount uint32
	MCastFilter      [MaxMCastFilterCount]MacAddress
	CurrentAddress   MacAddress
	BroadcastAddress MacAddress
	PermanentAddress MacAddress
	// Interface type as in RFC 3232 (1 is Ethernet)
	IfType                uint8
	MacAddressChangeable  Boolean
	MultipleTxSupported   Boolean
	MediaPresentSupported Boolean
	MediaPresent          Boolean
}

// MulticastFilters returns the active multicast filters. A count larger
// than the array's capacity is clamped.
func (m *NetworkMode) MulticastFilters() []MacAddress {
	n := int(m.MCastFilterCount)
	if n > MaxMCastFilterCount {
		n = MaxMCastFilterCount
	}

	filters := make([]MacAddress, n)
	copy(filters, m.MCastFilter[:n])
	return filters
}

// MulticastCapacity is the usable number of multicast filter slots.
func (m *NetworkMode) MulticastCapacity() int {
	n := int(m.MaxMCastFilterCount)
	if n > MaxMCastFilterCount {
		n = MaxMCastFilterCount
	}
	return n
}

// AddressSize returns the significant length of the hardware addresses.
func (m *NetworkMode) AddressSize() int {
	n := int(m.HwAddressSize)
	if n <= 0 || n > len(MacAddress{}) {
		return 6
	}
	return n
}

// ModeInfo is a copied, JSON-friendly view of a NetworkMode.
type ModeInfo struct {
	State                 string   `json:"state"`
	HwAddressSize         uint32   `json:"hw_address_size"`
	MediaHeaderSize       uint32   `json:"media_header_size"`
	MaxPacketSize         uint32   `json:"max_packet_size"`
	NvRAMSize             uint32   `json:"nvram_size"`
	NvRAMAccessSize       uint32   `json:"nvram_access_size"`
	ReceiveFilterMask     uint32   `json:"receive_filter_mask"`
	ReceiveFilterSetting  uint32   `json:"receive_filter_setting"`
	MaxMCastFilterCount   uint32   `json:"max_mcast_filter_count"`
	MCastFilters          []string `json:"mcast_filters"`
	CurrentAddress        string   `json:"current_address"`
	BroadcastAddress      string   `json:"broadcast_address"`
	PermanentAddress      string   `json:"permanent_address"`
	IfType                uint8    `json:"if_type"`
	MacAddressChangeable  bool     `json:"mac_address_changeable"`
	MultipleTxSupported   bool     `json:"multiple_tx_supported"`
	MediaPresentSupported bool     `json:"media_present_supported"`
	MediaPresent          bool     `json:"media_present"`
}

// Info copies the mode into a ModeInfo.
func (m *NetworkMode) Info() ModeInfo {
	size := m.AddressSize()

	filters := m.MulticastFilters()
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.HardwareAddr(size).String()
	}

	return ModeInfo{
		State:                 m.State.String(),
		HwAddressSize:         m.HwAddressSize,
		MediaHeaderSize:       m.MediaHeaderSize,
		MaxPacketSize:         m.MaxPacketSize,
		NvRAMSize:             m.NvRAMSize,
		NvRAMAccessSize:       m.NvRAMAccessSize,
		ReceiveFilterMask:     uint32(m.ReceiveFilterMask),
		ReceiveFilterSetting:  uint32(m.ReceiveFilterSetting),
		MaxMCastFilterCount:   m.MaxMCastFilterCount,
		MCastFilters:          names,
		CurrentAddress:        m.CurrentAddress.HardwareAddr(size).String(),
		BroadcastAddress:      m.BroadcastAddress.HardwareAddr(size).String(),
		PermanentAddress:      m.PermanentAddress.HardwareAddr(size).String(),
		IfType:                m.IfType,
		MacAddressChangeable:  m.MacAddressChangeable.Bool(),
		MultipleTxSupported:   m.MultipleTxSupported.Bool(),
		MediaPresentSupported: m.MediaPresentSupported.Bool(),
		MediaPresent:          m.MediaPresent.Bool(),
	}
}

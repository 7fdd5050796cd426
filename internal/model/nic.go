// internal/model/nic.go
package model

import (
	"time"

	"efi-access/internal/firmware/sim"
	"efi-access/pkg/efi/helpers"
	"efi-access/pkg/efi/snp"
)

// InitializeRequest carries the optional extra buffer sizes
type InitializeRequest struct {
	ExtraRxBufferSize *uint `json:"extra_rx_buffer_size,omitempty"`
	ExtraTxBufferSize *uint `json:"extra_tx_buffer_size,omitempty"`
}

// ResetRequest carries the reset options
type ResetRequest struct {
	ExtendedVerification bool `json:"extended_verification"`
}

// FilterRequest changes the receive filters
type FilterRequest struct {
	Enable     []string `json:"enable"`
	Disable    []string `json:"disable"`
	ResetMCast bool     `json:"reset_mcast"`
	MCast      []string `json:"mcast"`
}

// StationAddressRequest changes the current hardware address
type StationAddressRequest struct {
	Reset   bool   `json:"reset"`
	Address string `json:"address"`
}

// McastRequest asks for the MAC address of a multicast group
type McastRequest struct {
	IP string `json:"ip" binding:"required"`
}

// McastResponse is the mapped MAC address
type McastResponse struct {
	IP  string `json:"ip"`
	MAC string `json:"mac"`
}

// NVDataRequest writes NVRAM
type NVDataRequest struct {
	Offset uint   `json:"offset"`
	Data   []byte `json:"data" binding:"required"`
}

// NVDataResponse is a block of NVRAM
type NVDataResponse struct {
	Offset uint   `json:"offset"`
	Data   []byte `json:"data"`
}

// TransmitRequest queues a frame. With HeaderSize zero the payload must
// already carry the media header.
type TransmitRequest struct {
	HeaderSize  uint    `json:"header_size"`
	Source      string  `json:"source,omitempty"`
	Destination string  `json:"destination,omitempty"`
	Protocol    *uint16 `json:"protocol,omitempty"`
	Payload     []byte  `json:"payload" binding:"required"`
}

// TransmitResponse reports the frame handed to firmware
type TransmitResponse struct {
	FrameSize int `json:"frame_size"`
	Pending   int `json:"pending"`
}

// ReceiveRequest sizes the receive buffer
type ReceiveRequest struct {
	BufferSize int `json:"buffer_size"`
}

// ReceivedFrame is one frame read from the interface
type ReceivedFrame struct {
	Length      int    `json:"length"`
	HeaderSize  uint   `json:"header_size"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Protocol    uint16 `json:"protocol"`
	Data        []byte `json:"data"`
}

// InjectRequest delivers a raw frame from the wire
type InjectRequest struct {
	Frame []byte `json:"frame" binding:"required"`
}

// InterruptInfo decodes the interrupt status bits
type InterruptInfo struct {
	Raw      uint32 `json:"raw"`
	Receive  bool   `json:"receive"`
	Transmit bool   `json:"transmit"`
	Command  bool   `json:"command"`
	Software bool   `json:"software"`
}

// NewInterruptInfo decodes s
func NewInterruptInfo(s snp.InterruptStatus) InterruptInfo {
	return InterruptInfo{
		Raw:      uint32(s),
		Receive:  s.Receive(),
		Transmit: s.Transmit(),
		Command:  s.Command(),
		Software: s.Software(),
	}
}

// StatusResponse is the result of polling GetStatus
type StatusResponse struct {
	Interrupts    InterruptInfo `json:"interrupts"`
	RecycledBytes int           `json:"recycled_bytes"`
	Pending       int           `json:"pending"`
}

// FirmwareInfo describes the emulated firmware
type FirmwareInfo struct {
	Phase     string              `json:"phase"`
	Time      time.Time           `json:"time"`
	Firmware  sim.Report          `json:"firmware"`
	Allocator helpers.AllocStats  `json:"allocator"`
	Pending   int                 `json:"pending_transmits"`
	RxQueued  int                 `json:"rx_queued"`
	LastTx    *sim.TransmitRecord `json:"last_transmit,omitempty"`
}

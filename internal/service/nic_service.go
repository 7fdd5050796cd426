// internal/service/nic_service.go
package service

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"efi-access/internal/firmware/sim"
	"efi-access/internal/logging"
	"efi-access/internal/model"
	"efi-access/pkg/efi"
	"efi-access/pkg/efi/helpers"
	"efi-access/pkg/efi/snp"
)

// ErrInvalidRequest wraps request values the service could not parse
var ErrInvalidRequest = errors.New("invalid request")

var filterNames = map[string]snp.ReceiveFilter{
	"unicast":               snp.ReceiveUnicast,
	"multicast":             snp.ReceiveMulticast,
	"broadcast":             snp.ReceiveBroadcast,
	"promiscuous":           snp.ReceivePromiscuous,
	"promiscuous_multicast": snp.ReceivePromiscuousMulticast,
}

// NICService serializes access to one Simple Network binding and reports
// every operation on the event bus
type NICService struct {
	mutex   sync.Mutex
	fw      *sim.Firmware
	nic     *sim.NIC
	boot    *efi.BootTable
	runtime *efi.RuntimeTable
	net     *snp.SimpleNetwork
	helpers *helpers.Context
	bus     *EventBus
	logger  *logging.ServiceLogger
}

// NewNICService creates a new NIC service instance
func NewNICService(
	fw *sim.Firmware,
	nic *sim.NIC,
	boot *efi.BootTable,
	net *snp.SimpleNetwork,
	hc *helpers.Context,
	bus *EventBus,
	logger *zap.Logger,
) *NICService {
	return &NICService{
		fw:      fw,
		nic:     nic,
		boot:    boot,
		net:     net,
		helpers: hc,
		bus:     bus,
		logger:  logging.NewServiceLogger(logger, "nic-service"),
	}
}

// run executes fn as one logged operation and publishes its outcome
func (s *NICService) run(operation string, fn func() error, fields ...zap.Field) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	opLogger := logging.NewOperationLogger(s.logger.Logger, operation, uuid.NewString())
	opLogger.Start(fields...)
	start := time.Now()

	err := fn()

	data := map[string]interface{}{
		"operation_id": opLogger.ID(),
		"operation":    operation,
		"duration_ms":  time.Since(start).Milliseconds(),
	}

	if err != nil {
		opLogger.Error(err, fields...)
		data["error"] = err.Error()
		data["retryable"] = efi.IsRetryable(err)
		if status, ok := efi.StatusOf(err); ok {
			data["efi_status"] = status.String()
		}
		s.publish(model.EventOperationFailed, "WARNING", data)
		return err
	}

	opLogger.Success(fields...)
	s.helpers.Logger().Debug("NIC operation", zap.String("operation", operation))
	s.publish(model.EventOperationCompleted, "INFO", data)
	return nil
}

func (s *NICService) publish(eventType model.EventType, severity string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(model.NewNICEvent(eventType, severity, data))
}

// Mode returns a copy of the interface mode
func (s *NICService) Mode() (*snp.ModeInfo, error) {
	var info snp.ModeInfo
	err := s.run("mode", func() error {
		mode, err := s.net.Mode()
		if err != nil {
			return err
		}
		info = mode.Info()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Statistics collects the counters; unsupported counters are nil
func (s *NICService) Statistics() (map[string]*uint64, error) {
	var snapshot map[string]*uint64
	err := s.run("statistics", func() error {
		stats, err := s.net.CollectStatistics()
		if err != nil {
			return err
		}
		snapshot = stats.Snapshot()
		return nil
	})
	return snapshot, err
}

// ResetStatistics zeroes the counters
func (s *NICService) ResetStatistics() error {
	return s.run("reset_statistics", s.net.ResetStatistics)
}

// Status reads and clears the interrupt status and reclaims one recycled
// transmit buffer
func (s *NICService) Status() (*model.StatusResponse, error) {
	var resp model.StatusResponse
	err := s.run("get_status", func() error {
		interrupts, err := s.net.InterruptStatus()
		if err != nil {
			return err
		}
		recycled, err := s.net.RecycledTransmitBuffer()
		if err != nil {
			return err
		}

		resp = model.StatusResponse{
			Interrupts:    model.NewInterruptInfo(interrupts),
			RecycledBytes: len(recycled),
			Pending:       s.net.Pending(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start moves the interface from stopped to started
func (s *NICService) Start() error {
	return s.run("start", s.net.Start)
}

// Stop moves the interface from started to stopped
func (s *NICService) Stop() error {
	return s.run("stop", s.net.Stop)
}

// Initialize allocates the interface's resources
func (s *NICService) Initialize(req *model.InitializeRequest) error {
	return s.run("initialize", func() error {
		return s.net.Initialize(req.ExtraRxBufferSize, req.ExtraTxBufferSize)
	})
}

// Reset resets the interface
func (s *NICService) Reset(req *model.ResetRequest) error {
	return s.run("reset", func() error {
		return s.net.Reset(req.ExtendedVerification)
	}, zap.Bool("extended_verification", req.ExtendedVerification))
}

// Shutdown releases the interface's resources
func (s *NICService) Shutdown() error {
	return s.run("shutdown", s.net.Shutdown)
}

// BringUp starts and initializes the interface and enables unicast and
// broadcast reception
func (s *NICService) BringUp() error {
	return s.run("bring_up", func() error {
		if err := s.net.Start(); err != nil && !efi.IsStatus(err, efi.AlreadyStarted) {
			return fmt.Errorf("failed to start interface: %w", err)
		}
		if err := s.net.Initialize(nil, nil); err != nil {
			return fmt.Errorf("failed to initialize interface: %w", err)
		}
		if err := s.net.ReceiveFilters(snp.ReceiveUnicast|snp.ReceiveBroadcast, 0, false, nil); err != nil {
			return fmt.Errorf("failed to enable receive filters: %w", err)
		}
		return nil
	})
}

// SetFilters changes the receive filters
func (s *NICService) SetFilters(req *model.FilterRequest) error {
	enable, err := parseFilters(req.Enable)
	if err != nil {
		return err
	}
	disable, err := parseFilters(req.Disable)
	if err != nil {
		return err
	}

	var mcast []snp.MacAddress
	for _, text := range req.MCast {
		mac, err := snp.ParseMac(text)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		mcast = append(mcast, mac)
	}

	return s.run("receive_filters", func() error {
		return s.net.ReceiveFilters(enable, disable, req.ResetMCast, mcast)
	},
		zap.Strings("enable", req.Enable),
		zap.Strings("disable", req.Disable),
		zap.Int("mcast_count", len(mcast)),
	)
}

func parseFilters(names []string) (snp.ReceiveFilter, error) {
	var mask snp.ReceiveFilter
	for _, name := range names {
		f, ok := filterNames[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("%w: unknown receive filter %q", ErrInvalidRequest, name)
		}
		mask |= f
	}
	return mask, nil
}

// SetStationAddress changes or resets the current hardware address
func (s *NICService) SetStationAddress(req *model.StationAddressRequest) error {
	var addr *snp.MacAddress
	if !req.Reset {
		mac, err := snp.ParseMac(req.Address)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		addr = &mac
	}

	return s.run("station_address", func() error {
		return s.net.StationAddress(req.Reset, addr)
	}, zap.Bool("reset", req.Reset), zap.String("address", req.Address))
}

// McastMAC maps a multicast IP address to its hardware address
func (s *NICService) McastMAC(req *model.McastRequest) (*model.McastResponse, error) {
	addr, err := netip.ParseAddr(req.IP)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	ip, ipv6 := snp.IPFrom(addr)

	var resp model.McastResponse
	err = s.run("mcast_ip_to_mac", func() error {
		mac, err := s.net.McastIPToMAC(ipv6, ip)
		if err != nil {
			return err
		}
		resp = model.McastResponse{IP: addr.String(), MAC: mac.String()}
		return nil
	}, zap.String("ip", req.IP))
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReadNV reads length bytes of NVRAM at offset
func (s *NICService) ReadNV(offset uint, length int) (*model.NVDataResponse, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: length must be positive", ErrInvalidRequest)
	}

	var buf []byte
	err := s.run("read_nvdata", func() error {
		mode, err := s.net.Mode()
		if err != nil {
			return err
		}
		if uint64(length) > uint64(mode.NvRAMSize) {
			return fmt.Errorf("%w: length %d exceeds NVRAM size %d", ErrInvalidRequest, length, mode.NvRAMSize)
		}

		buf = make([]byte, length)
		return s.net.ReadNVData(offset, buf)
	}, zap.Uint("offset", offset), zap.Int("length", length))
	if err != nil {
		return nil, err
	}
	return &model.NVDataResponse{Offset: offset, Data: buf}, nil
}

// WriteNV writes NVRAM
func (s *NICService) WriteNV(req *model.NVDataRequest) error {
	return s.run("write_nvdata", func() error {
		return s.net.WriteNVData(req.Offset, req.Data)
	}, zap.Uint("offset", req.Offset), zap.Int("length", len(req.Data)))
}

// Transmit queues one frame
func (s *NICService) Transmit(req *model.TransmitRequest) (*model.TransmitResponse, error) {
	src, err := optionalMac(req.Source)
	if err != nil {
		return nil, err
	}
	dst, err := optionalMac(req.Destination)
	if err != nil {
		return nil, err
	}

	var resp model.TransmitResponse
	err = s.run("transmit", func() error {
		if err := s.net.Transmit(req.HeaderSize, req.Payload, src, dst, req.Protocol); err != nil {
			return err
		}
		resp = model.TransmitResponse{
			FrameSize: int(req.HeaderSize) + len(req.Payload),
			Pending:   s.net.Pending(),
		}
		return nil
	}, zap.Uint("header_size", req.HeaderSize), zap.Int("payload_size", len(req.Payload)))
	if err != nil {
		return nil, err
	}

	s.publish(model.EventFrameTransmitted, "INFO", map[string]interface{}{
		"frame_size":  resp.FrameSize,
		"destination": req.Destination,
	})
	return &resp, nil
}

func optionalMac(text string) (*snp.MacAddress, error) {
	if text == "" {
		return nil, nil
	}
	mac, err := snp.ParseMac(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return &mac, nil
}

// Receive reads one frame. A zero buffer size means the largest frame the
// interface can deliver; larger sizes are rejected.
func (s *NICService) Receive(req *model.ReceiveRequest) (*model.ReceivedFrame, error) {
	if req.BufferSize < 0 {
		return nil, fmt.Errorf("%w: buffer size must not be negative", ErrInvalidRequest)
	}

	var frame model.ReceivedFrame
	err := s.run("receive", func() error {
		mode, err := s.net.Mode()
		if err != nil {
			return err
		}
		limit := int(mode.MaxPacketSize + mode.MediaHeaderSize)

		size := req.BufferSize
		switch {
		case size == 0:
			size = limit
		case size > limit:
			return fmt.Errorf("%w: buffer size %d exceeds largest frame %d", ErrInvalidRequest, size, limit)
		}

		buf, release, err := s.receiveBuffer(size)
		if err != nil {
			return err
		}
		defer release()

		var (
			headerSize uint
			src, dst   snp.MacAddress
			proto      uint16
		)
		n, err := s.net.Receive(buf, &headerSize, &src, &dst, &proto)
		if err != nil {
			return err
		}

		frame = model.ReceivedFrame{
			Length:      n,
			HeaderSize:  headerSize,
			Source:      src.String(),
			Destination: dst.String(),
			Protocol:    proto,
			Data:        append([]byte(nil), buf[:n]...),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(model.EventFrameReceived, "INFO", map[string]interface{}{
		"length": frame.Length,
		"source": frame.Source,
	})
	return &frame, nil
}

// receiveBuffer takes the buffer from pool memory while the allocator is
// enabled and from the Go heap otherwise
func (s *NICService) receiveBuffer(size int) ([]byte, func(), error) {
	alloc := s.helpers.Allocator()

	buf, err := alloc.Allocate(size)
	switch {
	case err == nil:
		return buf, func() {
			if err := alloc.Free(buf); err != nil {
				s.logger.Warn("Failed to free receive buffer", zap.Error(err))
			}
		}, nil
	case errors.Is(err, efi.ErrNotInitialized):
		return make([]byte, size), func() {}, nil
	default:
		return nil, nil, err
	}
}

// Inject delivers a raw frame to the emulated wire
func (s *NICService) Inject(req *model.InjectRequest) error {
	err := s.run("inject", func() error {
		return s.nic.Inject(req.Frame)
	}, zap.Int("frame_size", len(req.Frame)))
	if err != nil {
		return err
	}

	s.publish(model.EventFrameInjected, "INFO", map[string]interface{}{
		"frame_size": len(req.Frame),
		"rx_queued":  s.nic.RxQueued(),
	})
	return nil
}

// Firmware describes the emulated firmware and the helper state
func (s *NICService) Firmware() (*model.FirmwareInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now, err := s.boot.Runtime().GetTime()
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware time: %w", err)
	}

	info := &model.FirmwareInfo{
		Phase:     s.boot.Phase().String(),
		Time:      now,
		Firmware:  s.fw.Report(),
		Allocator: s.helpers.Allocator().Stats(),
		Pending:   s.net.Pending(),
		RxQueued:  s.nic.RxQueued(),
	}
	if rec, ok := s.nic.LastTransmit(); ok {
		info.LastTx = &rec
	}
	return info, nil
}

// ExitBootServices terminates boot services. Every later NIC operation
// fails with efi.ErrBootServicesExited.
func (s *NICService) ExitBootServices() error {
	err := s.run("exit_boot_services", func() error {
		rt, err := s.boot.ExitBootServices()
		if err != nil {
			return err
		}
		s.runtime = rt
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(model.EventBootServicesExited, "WARNING", map[string]interface{}{
		"phase": efi.PostExit.String(),
	})
	s.logger.Info("Boot services exited")
	return nil
}

// Phase reports the current firmware phase
func (s *NICService) Phase() efi.Phase {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.runtime != nil {
		return s.runtime.Phase()
	}
	return s.boot.Phase()
}

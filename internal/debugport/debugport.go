// internal/debugport/debugport.go
package debugport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"efi-access/internal/config"
)

// Open returns the secondary diagnostic channel selected by cfg, or nil when
// the output is "none".
func Open(cfg *config.DebugConfig, logger *zap.Logger) (io.WriteCloser, error) {
	switch cfg.Output {
	case "", "none":
		return nil, nil
	case "serial":
		w, err := OpenSerial(&cfg.Serial, logger)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "file":
		w, err := OpenFile(&cfg.File)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown debug output %q", cfg.Output)
	}
}

// SerialWriter writes diagnostics to a serial port, the way a firmware
// debug UART is usually exposed.
type SerialWriter struct {
	config *config.SerialPortConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.Mutex
}

// OpenSerial opens the configured serial port for writing
func OpenSerial(cfg *config.SerialPortConfig, logger *zap.Logger) (*SerialWriter, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("port is required")
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: stopBits(cfg.StopBits),
		Parity:   parity(cfg.Parity),
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		available, _ := Ports()
		logger.Error("Failed to open serial port",
			zap.Error(err),
			zap.String("port", cfg.Port),
			zap.Strings("available", available),
		)
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	logger.Info("Serial debug port opened",
		zap.String("port", cfg.Port),
		zap.Int("baud_rate", cfg.BaudRate),
	)

	return &SerialWriter{
		config: cfg,
		port:   port,
		logger: logger,
	}, nil
}

// Ports lists the serial ports present on the host
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}
	return ports, nil
}

func stopBits(n int) serial.StopBits {
	if n == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

func parity(p string) serial.Parity {
	switch p {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}

// Write writes p to the serial port
func (w *SerialWriter) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.port == nil {
		return 0, fmt.Errorf("serial port not open")
	}

	n, err := w.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(p) {
		return n, fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(p))
	}
	return n, nil
}

// Close closes the serial port
func (w *SerialWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.port == nil {
		return nil
	}

	if err := w.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	w.port = nil

	w.logger.Info("Serial debug port closed", zap.String("port", w.config.Port))
	return nil
}

// OpenFile returns a size-rotated debug log file
func OpenFile(cfg *config.DebugFileConfig) (*lumberjack.Logger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("debug file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create debug log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
	}, nil
}

// internal/firmware/sim/firmware.go
package sim

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"efi-access/pkg/efi"
)

// Function is an emulated firmware entry point. args[0] is the protocol
// table the function was called through.
type Function func(args []efi.Arg) efi.Status

type function struct {
	name     string
	fn       Function
	bootOnly bool
}

type installation struct {
	handle efi.Handle
	guid   efi.GUID
	iface  unsafe.Pointer
}

// Firmware emulates the parts of a UEFI environment the efi package binds:
// function pointer dispatch, protocol lookup, pool allocation, console text
// output, runtime services and the boot services exit.
type Firmware struct {
	mu     sync.Mutex
	logger *zap.Logger

	nextFn     uintptr
	functions  map[uintptr]function
	nextHandle efi.Handle
	installed  []installation
	pools      map[unsafe.Pointer][]byte

	console    strings.Builder
	exited     bool
	failExit   int
	calls      uint64
	violations []string
	resets     []efi.ResetType
	now        func() time.Time
}

// New creates an emulated firmware in the boot services phase.
func New(logger *zap.Logger) *Firmware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Firmware{
		logger:     logger.With(zap.String("component", "firmware")),
		nextFn:     0xfeed0000,
		functions:  make(map[uintptr]function),
		nextHandle: 0x7e000000,
		pools:      make(map[unsafe.Pointer][]byte),
		now:        time.Now,
	}
}

// Entry returns the references an application receives at entry.
func (f *Firmware) Entry() efi.Firmware {
	return efi.Firmware{
		Invoker: f,
		Boot:    f,
		Runtime: f,
		ConOut:  f,
	}
}

// Register assigns a function pointer to fn. Boot-only functions become
// invalid when boot services are exited.
func (f *Firmware) Register(name string, bootOnly bool, fn Function) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextFn += 0x10
	f.functions[f.nextFn] = function{name: name, fn: fn, bootOnly: bootOnly}
	return f.nextFn
}

// Install publishes a protocol interface on a new handle.
func (f *Firmware) Install(guid efi.GUID, iface unsafe.Pointer) efi.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextHandle += 0x100
	f.installed = append(f.installed, installation{
		handle: f.nextHandle,
		guid:   guid,
		iface:  iface,
	})

	f.logger.Debug("Protocol installed",
		zap.Stringer("guid", guid),
		zap.Uint64("handle", uint64(f.nextHandle)),
	)
	return f.nextHandle
}

// Invoke dispatches a call through a function pointer.
func (f *Firmware) Invoke(fn uintptr, args ...efi.Arg) efi.Status {
	f.mu.Lock()
	entry, ok := f.functions[fn]
	f.calls++
	exited := f.exited
	f.mu.Unlock()

	if !ok {
		f.violate("call through unknown function pointer %#x", fn)
		return efi.Unsupported
	}
	if exited && entry.bootOnly {
		f.violate("%s called after ExitBootServices", entry.name)
		return efi.Unsupported
	}

	status := entry.fn(args)
	f.logger.Debug("Firmware call",
		zap.String("function", entry.name),
		zap.Stringer("status", status),
	)
	return status
}

func (f *Firmware) violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	f.mu.Lock()
	f.violations = append(f.violations, msg)
	f.mu.Unlock()

	f.logger.Warn("Firmware contract violation", zap.String("violation", msg))
}

// bootService guards every boot service entry point.
func (f *Firmware) bootService(name string) error {
	f.mu.Lock()
	exited := f.exited
	f.calls++
	f.mu.Unlock()

	if exited {
		f.violate("%s called after ExitBootServices", name)
		return &efi.StatusError{Status: efi.Unsupported}
	}
	return nil
}

// LocateProtocol returns the first interface installed for guid.
func (f *Firmware) LocateProtocol(guid efi.GUID) (unsafe.Pointer, error) {
	if err := f.bootService("LocateProtocol"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, inst := range f.installed {
		if inst.guid == guid {
			return inst.iface, nil
		}
	}
	return nil, &efi.StatusError{Status: efi.NotFound}
}

// LocateHandleBuffer returns every handle with guid installed.
func (f *Firmware) LocateHandleBuffer(guid efi.GUID) ([]efi.Handle, error) {
	if err := f.bootService("LocateHandleBuffer"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var handles []efi.Handle
	for _, inst := range f.installed {
		if inst.guid == guid {
			handles = append(handles, inst.handle)
		}
	}
	if len(handles) == 0 {
		return nil, &efi.StatusError{Status: efi.NotFound}
	}
	return handles, nil
}

// HandleProtocol returns the interface for guid on handle.
func (f *Firmware) HandleProtocol(handle efi.Handle, guid efi.GUID) (unsafe.Pointer, error) {
	if err := f.bootService("HandleProtocol"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, inst := range f.installed {
		if inst.handle == handle && inst.guid == guid {
			return inst.iface, nil
		}
	}
	return nil, &efi.StatusError{Status: efi.Unsupported}
}

// AllocatePool hands out size bytes of pool memory.
func (f *Firmware) AllocatePool(memoryType efi.MemoryType, size uintptr) (unsafe.Pointer, error) {
	if err := f.bootService("AllocatePool"); err != nil {
		return nil, err
	}
	if size == 0 || memoryType >= efi.UnacceptedMemoryType {
		return nil, &efi.StatusError{Status: efi.InvalidParameter}
	}

	buf := make([]byte, size)
	ptr := unsafe.Pointer(unsafe.SliceData(buf))

	f.mu.Lock()
	f.pools[ptr] = buf
	f.mu.Unlock()

	return ptr, nil
}

// FreePool returns memory obtained from AllocatePool.
func (f *Firmware) FreePool(buf unsafe.Pointer) error {
	if err := f.bootService("FreePool"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pools[buf]; !ok {
		return &efi.StatusError{Status: efi.InvalidParameter}
	}
	delete(f.pools, buf)
	return nil
}

// FailExitBootServices makes the next n ExitBootServices calls fail the way
// firmware does when the memory map key is stale.
func (f *Firmware) FailExitBootServices(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failExit = n
}

// ExitBootServices terminates boot services.
func (f *Firmware) ExitBootServices() error {
	if err := f.bootService("ExitBootServices"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failExit > 0 {
		f.failExit--
		return &efi.StatusError{Status: efi.InvalidParameter}
	}

	f.exited = true
	f.logger.Info("Boot services exited",
		zap.Int("pool_allocations", len(f.pools)),
	)
	return nil
}

// OutputString implements the console text output.
func (f *Firmware) OutputString(text []byte) error {
	if err := f.bootService("OutputString"); err != nil {
		return err
	}

	s, err := efi.DecodeString(text)
	if err != nil {
		return &efi.StatusError{Status: efi.DeviceError}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.console.WriteString(s)
	return nil
}

// GetTime implements the runtime clock.
func (f *Firmware) GetTime() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.now(), nil
}

// ResetSystem records the reset request.
func (f *Firmware) ResetSystem(resetType efi.ResetType, status efi.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.resets = append(f.resets, resetType)
	f.logger.Info("System reset requested",
		zap.Uint32("reset_type", uint32(resetType)),
		zap.Stringer("status", status),
	)
	return nil
}

// Report is a snapshot of the emulator's bookkeeping.
type Report struct {
	Exited          bool            `json:"exited"`
	Calls           uint64          `json:"calls"`
	PoolAllocations int             `json:"pool_allocations"`
	Violations      []string        `json:"violations"`
	Resets          []efi.ResetType `json:"resets"`
	Console         string          `json:"console"`
}

// Report returns the current bookkeeping.
func (f *Firmware) Report() Report {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Report{
		Exited:          f.exited,
		Calls:           f.calls,
		PoolAllocations: len(f.pools),
		Violations:      append([]string(nil), f.violations...),
		Resets:          append([]efi.ResetType(nil), f.resets...),
		Console:         f.console.String(),
	}
}

// Console returns everything written to the console so far.
func (f *Firmware) Console() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.console.String()
}

// Calls returns the number of firmware entry points invoked.
func (f *Firmware) Calls() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Violations lists calls that would be undefined behaviour on real
// firmware.
func (f *Firmware) Violations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.violations...)
}

// Exited reports whether boot services have been exited.
func (f *Firmware) Exited() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exited
}

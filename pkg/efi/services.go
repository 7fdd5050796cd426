// pkg/efi/services.go
package efi

import (
	"time"
	"unsafe"
)

// Handle is an EFI_HANDLE.
type Handle uintptr

// Event is an EFI_EVENT. This package only passes events through; waiting on
// them is the job of the boot services WaitForEvent primitive.
type Event uintptr

// MemoryType is an EFI_MEMORY_TYPE.
type MemoryType uint32

// EFI_MEMORY_TYPE
const (
	ReservedMemoryType MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
	UnacceptedMemoryType
)

// ResetType is an EFI_RESET_TYPE.
type ResetType uint32

// EFI_RESET_TYPE
const (
	ResetCold ResetType = iota
	ResetWarm
	ResetShutdown
	ResetPlatformSpecific
)

// Invoker calls a firmware function pointer using the platform's firmware
// calling convention and returns its status. The call blocks until firmware
// returns control.
type Invoker interface {
	Invoke(fn uintptr, args ...Arg) Status
}

// BootServices is the subset of EFI_BOOT_SERVICES this package relies on.
// It is only valid before ExitBootServices.
type BootServices interface {
	LocateProtocol(guid GUID) (unsafe.Pointer, error)
	LocateHandleBuffer(guid GUID) ([]Handle, error)
	HandleProtocol(handle Handle, guid GUID) (unsafe.Pointer, error)
	AllocatePool(memoryType MemoryType, size uintptr) (unsafe.Pointer, error)
	FreePool(buf unsafe.Pointer) error
	ExitBootServices() error
}

// RuntimeServices is the subset of EFI_RUNTIME_SERVICES available in both
// phases.
type RuntimeServices interface {
	GetTime() (time.Time, error)
	ResetSystem(resetType ResetType, status Status) error
}

// TextOutput is EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.OutputString. The argument is
// a NUL-terminated little-endian CHAR16 string as produced by EncodeString.
type TextOutput interface {
	OutputString(text []byte) error
}

// Firmware bundles the references handed to the application at entry.
type Firmware struct {
	Invoker Invoker
	Boot    BootServices
	Runtime RuntimeServices
	ConOut  TextOutput
}

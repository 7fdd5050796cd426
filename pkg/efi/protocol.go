// pkg/efi/protocol.go
package efi

import (
	"fmt"
	"unsafe"
)

// Interface is a located protocol instance: a non-owning reference to the
// firmware's function table, valid while the protocol stays open and boot
// services have not been exited.
type Interface struct {
	guid   GUID
	handle Handle
	ptr    unsafe.Pointer
	table  *BootTable
}

// GUID returns the protocol identifier the interface was opened with.
func (i *Interface) GUID() GUID {
	return i.guid
}

// Handle returns the handle the interface was opened on; zero when it was
// located without one.
func (i *Interface) Handle() Handle {
	return i.handle
}

// Pointer returns the address of the firmware-owned table.
func (i *Interface) Pointer() unsafe.Pointer {
	return i.ptr
}

// Valid reports whether the interface may still be called.
func (i *Interface) Valid() bool {
	return i.table.Phase() == PreExit
}

// Call invokes a function pointer stored in the table. The table itself is
// passed as the first argument, as every protocol member function expects.
// One firmware call is made and its status converted with FromStatus.
func (i *Interface) Call(fn uintptr, args ...Arg) error {
	status, err := i.Invoke(fn, args...)
	if err != nil {
		return err
	}

	return FromStatus(status)
}

// Invoke is Call without the status conversion, for methods that need to
// inspect out-parameters before deciding how to report the status. The error
// is only set when the call was refused before reaching firmware, and is then
// never a *StatusError.
func (i *Interface) Invoke(fn uintptr, args ...Arg) (Status, error) {
	if err := i.Check(); err != nil {
		return Success, err
	}
	if fn == 0 {
		return Success, &ArgumentError{Op: "efi.Call", Reason: "null function pointer"}
	}

	full := make([]Arg, 0, len(args)+1)
	full = append(full, Pointer(i.ptr))
	full = append(full, args...)

	return i.table.st.fw.Invoker.Invoke(fn, full...), nil
}

// Check returns ErrBootServicesExited once the interface's validity window
// has closed. Bindings call it before marshaling arguments.
func (i *Interface) Check() error {
	if !i.Valid() {
		return ErrBootServicesExited
	}
	return nil
}

// OpenProtocol locates the first instance of the protocol identified by guid
// and hands it to bind, which turns it into a typed protocol binding.
func OpenProtocol[T any](t *BootTable, guid GUID, bind func(*Interface) (*T, error)) (*T, error) {
	if err := t.checkBoot(); err != nil {
		return nil, err
	}

	ptr, err := t.st.fw.Boot.LocateProtocol(guid)
	if err != nil {
		return nil, fmt.Errorf("failed to locate protocol %s: %w", guid, err)
	}

	return bindInterface(t, guid, 0, ptr, bind)
}

// OpenProtocolOn binds the protocol instance installed on handle.
func OpenProtocolOn[T any](t *BootTable, handle Handle, guid GUID, bind func(*Interface) (*T, error)) (*T, error) {
	if err := t.checkBoot(); err != nil {
		return nil, err
	}

	ptr, err := t.st.fw.Boot.HandleProtocol(handle, guid)
	if err != nil {
		return nil, fmt.Errorf("failed to open protocol %s on handle %#x: %w", guid, uintptr(handle), err)
	}

	return bindInterface(t, guid, handle, ptr, bind)
}

// LocateHandles returns every handle supporting the protocol.
func (t *BootTable) LocateHandles(guid GUID) ([]Handle, error) {
	if err := t.checkBoot(); err != nil {
		return nil, err
	}

	handles, err := t.st.fw.Boot.LocateHandleBuffer(guid)
	if err != nil {
		return nil, fmt.Errorf("failed to locate handles for %s: %w", guid, err)
	}

	return handles, nil
}

func bindInterface[T any](t *BootTable, guid GUID, handle Handle, ptr unsafe.Pointer, bind func(*Interface) (*T, error)) (*T, error) {
	if ptr == nil {
		return nil, &StatusError{Status: NotFound}
	}

	return bind(&Interface{
		guid:   guid,
		handle: handle,
		ptr:    ptr,
		table:  t,
	})
}

// pkg/efi/helpers/alloc.go
package helpers

import (
	"fmt"
	"sync"
	"unsafe"

	"efi-access/pkg/efi"
)

type lifecycle uint8

const (
	uninitialized lifecycle = iota
	ready
	exited
)

// AllocStats reports the allocator's bookkeeping.
type AllocStats struct {
	Live        int    `json:"live"`
	LiveBytes   int    `json:"live_bytes"`
	Allocations uint64 `json:"allocations"`
	Leaked      int    `json:"leaked"`
}

// Allocator hands out firmware pool memory as LoaderData. It works only
// between Init and the exit of boot services. Memory still live at exit is
// left to the operating system.
type Allocator struct {
	mu    sync.Mutex
	boot  efi.BootServices
	state lifecycle
	live  map[unsafe.Pointer]int
	stats AllocStats
}

func newAllocator() *Allocator {
	return &Allocator{live: make(map[unsafe.Pointer]int)}
}

func (a *Allocator) init(boot efi.BootServices) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.boot = boot
	a.state = ready
}

func (a *Allocator) exit() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == ready {
		a.stats.Leaked = len(a.live)
	}
	a.state = exited
	a.boot = nil
}

// Allocate returns n bytes of pool memory.
func (a *Allocator) Allocate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, &efi.ArgumentError{Op: "helpers.Allocate", Reason: "size must be positive"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case uninitialized:
		return nil, efi.ErrNotInitialized
	case exited:
		return nil, efi.ErrBootServicesExited
	}

	ptr, err := a.boot.AllocatePool(efi.LoaderData, uintptr(n))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %d bytes: %w", n, err)
	}

	a.live[ptr] = n
	a.stats.Allocations++
	return unsafe.Slice((*byte)(ptr), n), nil
}

// Free returns memory obtained from Allocate. After boot services have
// exited it does nothing.
func (a *Allocator) Free(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	ptr := unsafe.Pointer(unsafe.SliceData(buf))

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case uninitialized:
		return efi.ErrNotInitialized
	case exited:
		return nil
	}

	if _, ok := a.live[ptr]; !ok {
		return &efi.ArgumentError{Op: "helpers.Free", Reason: "buffer was not returned by Allocate"}
	}
	if err := a.boot.FreePool(ptr); err != nil {
		return fmt.Errorf("failed to free pool memory: %w", err)
	}

	delete(a.live, ptr)
	return nil
}

// Stats returns the live allocation count and size.
func (a *Allocator) Stats() AllocStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := a.stats
	stats.Live = len(a.live)
	stats.LiveBytes = 0
	for _, n := range a.live {
		stats.LiveBytes += n
	}
	return stats
}

// pkg/efi/arg.go
package efi

import "unsafe"

// Arg is one machine word passed across the firmware call boundary.
//
// Pointer words are kept as unsafe.Pointer rather than uintptr so the
// referenced Go values stay reachable, and are heap-allocated, for as long
// as the argument list is alive.
type Arg struct {
	word uint64
	ptr  unsafe.Pointer
}

// Word passes a plain integer.
func Word(v uint64) Arg {
	return Arg{word: v}
}

// Uintn passes a UINTN.
func Uintn(v uintptr) Arg {
	return Arg{word: uint64(v)}
}

// Bool passes a BOOLEAN.
func Bool(b bool) Arg {
	if b {
		return Arg{word: 1}
	}

	return Arg{}
}

// Pointer passes a raw address; nil becomes the null pointer.
func Pointer(p unsafe.Pointer) Arg {
	return Arg{ptr: p}
}

// Optional marshals an optional argument: a nil p becomes the null pointer,
// anything else its address.
func Optional[T any](p *T) Arg {
	if p == nil {
		return Arg{}
	}

	return Arg{ptr: unsafe.Pointer(p)}
}

// OptionalSlice marshals an optional list as a (count, pointer) pair. An
// empty list becomes a zero count and a null pointer.
func OptionalSlice[T any](s []T) (count Arg, ptr Arg) {
	if len(s) == 0 {
		return Arg{}, Arg{}
	}

	return Uintn(uintptr(len(s))), Arg{ptr: unsafe.Pointer(unsafe.SliceData(s))}
}

// OptionalCount marshals an optional size: nil becomes zero.
func OptionalCount(n *uint) Arg {
	if n == nil {
		return Arg{}
	}

	return Uintn(uintptr(*n))
}

// IsNull reports whether the argument is the null pointer / zero word.
func (a Arg) IsNull() bool {
	return a.ptr == nil && a.word == 0
}

// Uint returns the argument as an integer word.
func (a Arg) Uint() uint64 {
	if a.ptr != nil {
		return uint64(uintptr(a.ptr))
	}

	return a.word
}

// Bool returns the argument as a BOOLEAN.
func (a Arg) Bool() bool {
	return a.Uint() != 0
}

// Pointer returns the argument as an address.
func (a Arg) Pointer() unsafe.Pointer {
	return a.ptr
}

// Deref is the inverse of Optional: the null pointer becomes nil.
func Deref[T any](a Arg) *T {
	if a.ptr == nil {
		return nil
	}

	return (*T)(a.ptr)
}

// DerefSlice is the inverse of OptionalSlice.
func DerefSlice[T any](count Arg, ptr Arg) []T {
	n := count.Uint()
	if n == 0 || ptr.ptr == nil {
		return nil
	}

	return unsafe.Slice((*T)(ptr.ptr), int(n))
}

// Bytes views n bytes at the argument's address.
func (a Arg) Bytes(n int) []byte {
	if a.ptr == nil || n <= 0 {
		return nil
	}

	return unsafe.Slice((*byte)(a.ptr), n)
}

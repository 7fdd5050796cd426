// pkg/efi/arg_test.go
package efi

import (
	"testing"
	"unsafe"
)

func TestOptionalRoundTrip(t *testing.T) {
	v := uint32(7)

	if got := Deref[uint32](Optional(&v)); got != &v {
		t.Fatalf("Deref(Optional(p)) = %p, want %p", got, &v)
	}
	if got := Deref[uint32](Optional[uint32](nil)); got != nil {
		t.Fatalf("Deref(Optional(nil)) = %p, want nil", got)
	}
	if !Optional[uint32](nil).IsNull() {
		t.Fatal("absent optional is not the null pointer")
	}
	if Optional(&v).IsNull() {
		t.Fatal("present optional is null")
	}
}

func TestOptionalSlice(t *testing.T) {
	count, ptr := OptionalSlice[uint16](nil)
	if !count.IsNull() || !ptr.IsNull() {
		t.Fatal("empty list must marshal as a zero count and null pointer")
	}

	list := []uint16{1, 2, 3}
	count, ptr = OptionalSlice(list)
	if count.Uint() != 3 {
		t.Fatalf("count = %d", count.Uint())
	}
	if ptr.Pointer() != unsafe.Pointer(&list[0]) {
		t.Fatal("pointer does not address the first element")
	}

	back := DerefSlice[uint16](count, ptr)
	if len(back) != 3 || &back[0] != &list[0] {
		t.Fatal("DerefSlice did not reproduce the list")
	}
}

func TestOptionalCount(t *testing.T) {
	if !OptionalCount(nil).IsNull() {
		t.Fatal("absent count must be zero")
	}

	n := uint(4096)
	if got := OptionalCount(&n).Uint(); got != 4096 {
		t.Fatalf("count = %d", got)
	}
}

func TestScalarArgs(t *testing.T) {
	if !Bool(true).Bool() || Bool(false).Bool() {
		t.Fatal("Bool round trip failed")
	}
	if Word(0x1122).Uint() != 0x1122 {
		t.Fatal("Word round trip failed")
	}
	if Uintn(99).Uint() != 99 {
		t.Fatal("Uintn round trip failed")
	}

	buf := []byte{9, 8, 7}
	b := Pointer(unsafe.Pointer(&buf[0])).Bytes(3)
	if len(b) != 3 || b[2] != 7 {
		t.Fatalf("Bytes = %v", b)
	}
	if Pointer(nil).Bytes(3) != nil {
		t.Fatal("null pointer must view no bytes")
	}
}

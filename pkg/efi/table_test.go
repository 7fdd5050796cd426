// pkg/efi/table_test.go
package efi_test

import (
	"errors"
	"testing"
	"unsafe"

	"efi-access/internal/firmware/sim"
	"efi-access/pkg/efi"
)

var pingGUID = efi.MustParseGUID("3e6d1c2a-8f0b-4b1e-9a77-2c5d0e4f6a10")

type pingTable struct {
	Ping uintptr
	Nil  uintptr
}

func identity(i *efi.Interface) (*efi.Interface, error) {
	return i, nil
}

func newPingTable(t *testing.T) (*sim.Firmware, *efi.BootTable, *pingTable, *[]efi.Arg) {
	t.Helper()

	fw := sim.New(nil)
	var seen []efi.Arg
	tbl := &pingTable{
		Ping: fw.Register("Ping.Ping", true, func(args []efi.Arg) efi.Status {
			seen = args
			return efi.WarnStaleData
		}),
	}
	fw.Install(pingGUID, unsafe.Pointer(tbl))

	bt, err := efi.NewBootTable(fw.Entry())
	if err != nil {
		t.Fatal(err)
	}
	return fw, bt, tbl, &seen
}

func TestInterfaceCallPassesTableFirst(t *testing.T) {
	_, bt, tbl, seen := newPingTable(t)

	iface, err := efi.OpenProtocol(bt, pingGUID, identity)
	if err != nil {
		t.Fatal(err)
	}

	if err := iface.Call(tbl.Ping, efi.Word(5)); err != nil {
		t.Fatalf("warning status must not be an error: %v", err)
	}
	if len(*seen) != 2 {
		t.Fatalf("got %d args", len(*seen))
	}
	if (*seen)[0].Pointer() != unsafe.Pointer(tbl) {
		t.Fatal("first argument is not the protocol table")
	}
	if (*seen)[1].Uint() != 5 {
		t.Fatal("argument was not forwarded")
	}
}

func TestInterfaceNullFunction(t *testing.T) {
	fw, bt, tbl, _ := newPingTable(t)

	iface, err := efi.OpenProtocol(bt, pingGUID, identity)
	if err != nil {
		t.Fatal(err)
	}

	before := fw.Calls()
	err = iface.Call(tbl.Nil)
	var argErr *efi.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("got %v, want an argument error", err)
	}
	if _, ok := efi.StatusOf(err); ok {
		t.Fatal("a refused call must not look like a firmware status")
	}
	if fw.Calls() != before {
		t.Fatal("a null function pointer reached firmware")
	}
}

func TestOpenProtocolNotFound(t *testing.T) {
	_, bt, _, _ := newPingTable(t)

	_, err := efi.OpenProtocol(bt, efi.MustParseGUID("00000000-0000-0000-0000-000000000001"), identity)
	if !efi.IsStatus(err, efi.NotFound) {
		t.Fatalf("got %v, want EFI_NOT_FOUND", err)
	}
}

func TestExitBootServicesRunsHooksInReverse(t *testing.T) {
	fw, bt, _, _ := newPingTable(t)

	var order []int
	for i := 1; i <= 3; i++ {
		if err := bt.OnExit(func() {
			if fw.Exited() {
				t.Error("hook ran after the firmware transition")
			}
			order = append(order, i)
		}); err != nil {
			t.Fatal(err)
		}
	}

	rt, err := bt.ExitBootServices()
	if err != nil {
		t.Fatal(err)
	}
	if rt.Phase() != efi.PostExit || bt.Phase() != efi.PostExit {
		t.Fatal("phase did not advance")
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("hook order = %v", order)
	}
}

func TestExitBootServicesFailureKeepsPreExit(t *testing.T) {
	fw, bt, _, _ := newPingTable(t)
	fw.FailExitBootServices(1)

	runs := 0
	if err := bt.OnExit(func() { runs++ }); err != nil {
		t.Fatal(err)
	}

	if _, err := bt.ExitBootServices(); !efi.IsStatus(err, efi.InvalidParameter) {
		t.Fatalf("got %v", err)
	}
	if bt.Phase() != efi.PreExit {
		t.Fatal("failed transition must leave the table PreExit")
	}

	if _, err := bt.ExitBootServices(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if runs != 1 {
		t.Fatalf("hooks ran %d times", runs)
	}
}

func TestConcurrentExitBootServicesIsRejected(t *testing.T) {
	fw, bt, _, _ := newPingTable(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	if err := bt.OnExit(func() {
		close(entered)
		<-release
	}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := bt.ExitBootServices()
		done <- err
	}()
	<-entered

	if _, err := bt.ExitBootServices(); !errors.Is(err, efi.ErrExitInProgress) {
		t.Fatalf("second exit while hooks run: %v", err)
	}
	if fw.Exited() {
		t.Fatal("firmware transition ran before the exit hooks finished")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if !fw.Exited() || bt.Phase() != efi.PostExit {
		t.Fatal("first exit did not complete")
	}
	if _, err := bt.ExitBootServices(); !errors.Is(err, efi.ErrBootServicesExited) {
		t.Fatalf("exit after completion: %v", err)
	}
}

func TestBootTableAfterExit(t *testing.T) {
	fw, bt, tbl, _ := newPingTable(t)

	iface, err := efi.OpenProtocol(bt, pingGUID, identity)
	if err != nil {
		t.Fatal(err)
	}

	rt, err := bt.ExitBootServices()
	if err != nil {
		t.Fatal(err)
	}
	calls := fw.Calls()

	if err := iface.Call(tbl.Ping); !errors.Is(err, efi.ErrBootServicesExited) {
		t.Errorf("Call: got %v", err)
	}
	if _, err := efi.OpenProtocol(bt, pingGUID, identity); !errors.Is(err, efi.ErrBootServicesExited) {
		t.Errorf("OpenProtocol: got %v", err)
	}
	if _, err := bt.BootServices(); !errors.Is(err, efi.ErrBootServicesExited) {
		t.Errorf("BootServices: got %v", err)
	}
	if _, err := bt.ConOut(); !errors.Is(err, efi.ErrBootServicesExited) {
		t.Errorf("ConOut: got %v", err)
	}
	if err := bt.OnExit(func() {}); !errors.Is(err, efi.ErrBootServicesExited) {
		t.Errorf("OnExit: got %v", err)
	}
	if _, err := bt.ExitBootServices(); !errors.Is(err, efi.ErrBootServicesExited) {
		t.Errorf("ExitBootServices: got %v", err)
	}

	if fw.Calls() != calls {
		t.Error("a refused call reached firmware")
	}
	if v := fw.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}

	if _, err := rt.Runtime().GetTime(); err != nil {
		t.Errorf("runtime services must survive the exit: %v", err)
	}
}

func TestNewBootTableRequiresInvoker(t *testing.T) {
	if _, err := efi.NewBootTable(efi.Firmware{}); err == nil {
		t.Fatal("expected an error")
	}
}

// internal/firmware/sim/sim_test.go
package sim_test

import (
	"errors"
	"net/netip"
	"testing"

	"efi-access/internal/firmware/sim"
	"efi-access/pkg/efi"
	"efi-access/pkg/efi/snp"
)

var broadcast = snp.MacAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func TestMulticastMAC(t *testing.T) {
	cases := []struct {
		addr string
		want string
		ok   bool
	}{
		{"224.0.0.251", "01:00:5e:00:00:fb", true},
		{"239.255.128.1", "01:00:5e:7f:80:01", true},
		{"ff02::1:ff00:1234", "33:33:ff:00:12:34", true},
		{"192.168.1.1", "", false},
		{"fe80::1", "", false},
	}

	for _, tc := range cases {
		mac, ok := sim.MulticastMAC(netip.MustParseAddr(tc.addr))
		if ok != tc.ok {
			t.Errorf("%s: ok = %v", tc.addr, ok)
			continue
		}
		if ok && mac.HardwareAddr(6).String() != tc.want {
			t.Errorf("%s: mac = %s, want %s", tc.addr, mac.HardwareAddr(6), tc.want)
		}
	}
}

func TestPoolAllocation(t *testing.T) {
	fw := sim.New(nil)

	ptr, err := fw.AllocatePool(efi.LoaderData, 64)
	if err != nil {
		t.Fatal(err)
	}
	if fw.Report().PoolAllocations != 1 {
		t.Fatalf("report = %+v", fw.Report())
	}
	if err := fw.FreePool(ptr); err != nil {
		t.Fatal(err)
	}
	if !efi.IsStatus(fw.FreePool(ptr), efi.InvalidParameter) {
		t.Fatal("double free accepted")
	}
	if _, err := fw.AllocatePool(efi.LoaderData, 0); !efi.IsStatus(err, efi.InvalidParameter) {
		t.Fatalf("zero size: %v", err)
	}
}

func TestBootServicesAfterExitAreViolations(t *testing.T) {
	fw := sim.New(nil)

	fw.FailExitBootServices(1)
	if err := fw.ExitBootServices(); !efi.IsStatus(err, efi.InvalidParameter) {
		t.Fatalf("first exit: %v", err)
	}
	if fw.Exited() {
		t.Fatal("exited after a refused transition")
	}
	if err := fw.ExitBootServices(); err != nil {
		t.Fatal(err)
	}
	if len(fw.Violations()) != 0 {
		t.Fatalf("violations before misuse: %v", fw.Violations())
	}

	if _, err := fw.AllocatePool(efi.LoaderData, 16); !efi.IsStatus(err, efi.Unsupported) {
		t.Fatalf("allocate after exit: %v", err)
	}
	if len(fw.Violations()) != 1 {
		t.Fatalf("violations = %v", fw.Violations())
	}

	if _, err := fw.GetTime(); err != nil {
		t.Fatalf("runtime service after exit: %v", err)
	}
	if err := fw.ResetSystem(efi.ResetWarm, efi.Success); err != nil {
		t.Fatal(err)
	}
	report := fw.Report()
	if len(report.Resets) != 1 || report.Resets[0] != efi.ResetWarm || len(report.Violations) != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestUnknownFunctionPointer(t *testing.T) {
	fw := sim.New(nil)

	if status := fw.Invoke(0x1234); status != efi.Unsupported {
		t.Fatalf("status = %v", status)
	}
	if len(fw.Violations()) != 1 {
		t.Fatalf("violations = %v", fw.Violations())
	}
}

func TestInjectFiltering(t *testing.T) {
	fw := sim.New(nil)
	cfg := sim.DefaultNICConfig()
	nic := sim.NewNIC(fw, cfg)

	frame := sim.BuildFrame(broadcast, snp.MacAddress{0x02}, 0x0806, make([]byte, 28))
	if err := nic.Inject(frame); !errors.Is(err, sim.ErrNotRunning) {
		t.Fatalf("inject while stopped: %v", err)
	}

	bt, err := efi.NewBootTable(fw.Entry())
	if err != nil {
		t.Fatal(err)
	}
	net, err := snp.Open(bt)
	if err != nil {
		t.Fatal(err)
	}
	if err := net.Start(); err != nil {
		t.Fatal(err)
	}
	if err := net.Initialize(nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := net.ReceiveFilters(snp.ReceiveUnicast, 0, false, nil); err != nil {
		t.Fatal(err)
	}

	if err := nic.Inject(frame[:10]); !errors.Is(err, sim.ErrShortFrame) {
		t.Fatalf("short frame: %v", err)
	}

	// Broadcast is filtered out, unicast to the station address is kept.
	if err := nic.Inject(frame); err != nil {
		t.Fatal(err)
	}
	if nic.RxQueued() != 0 {
		t.Fatalf("broadcast delivered with unicast-only filter")
	}

	unicast := sim.BuildFrame(cfg.MAC, snp.MacAddress{0x02}, 0x0800, make([]byte, 46))
	if err := nic.Inject(unicast); err != nil {
		t.Fatal(err)
	}
	if nic.RxQueued() != 1 {
		t.Fatalf("queued = %d", nic.RxQueued())
	}

	stats, err := net.CollectStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := stats.RxDroppedFrames(); !ok || v != 1 {
		t.Errorf("rx dropped = %d, %v", v, ok)
	}
	if v, ok := stats.RxUndersizeFrames(); !ok || v != 1 {
		t.Errorf("rx undersize = %d, %v", v, ok)
	}
	if v, ok := stats.RxUnicastFrames(); !ok || v != 1 {
		t.Errorf("rx unicast = %d, %v", v, ok)
	}
}

func TestFailNext(t *testing.T) {
	fw := sim.New(nil)
	nic := sim.NewNIC(fw, sim.DefaultNICConfig())

	bt, err := efi.NewBootTable(fw.Entry())
	if err != nil {
		t.Fatal(err)
	}
	net, err := snp.Open(bt)
	if err != nil {
		t.Fatal(err)
	}

	nic.FailNext("Start", efi.DeviceError)
	if err := net.Start(); !efi.IsStatus(err, efi.DeviceError) {
		t.Fatalf("injected failure: %v", err)
	}
	if nic.State() != snp.Stopped {
		t.Fatalf("state changed by a failed call: %v", nic.State())
	}

	if err := net.Start(); err != nil {
		t.Fatal(err)
	}
	if err := net.Start(); !efi.IsStatus(err, efi.AlreadyStarted) {
		t.Fatalf("second start: %v", err)
	}
}

// pkg/efi/snp/snp_test.go
package snp_test

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"efi-access/internal/firmware/sim"
	"efi-access/pkg/efi"
	"efi-access/pkg/efi/snp"
)

type rig struct {
	fw    *sim.Firmware
	nic   *sim.NIC
	table *efi.BootTable
	snp   *snp.SimpleNetwork
}

func newRig(t *testing.T, mutate func(*sim.NICConfig)) *rig {
	t.Helper()

	cfg := sim.DefaultNICConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	fw := sim.New(nil)
	nic := sim.NewNIC(fw, cfg)

	bt, err := efi.NewBootTable(fw.Entry())
	if err != nil {
		t.Fatal(err)
	}
	n, err := snp.Open(bt)
	if err != nil {
		t.Fatal(err)
	}

	return &rig{fw: fw, nic: nic, table: bt, snp: n}
}

func (r *rig) up(t *testing.T) {
	t.Helper()

	if err := r.snp.Start(); err != nil {
		t.Fatal(err)
	}
	if err := r.snp.Initialize(nil, nil); err != nil {
		t.Fatal(err)
	}
}

func TestLifecycle(t *testing.T) {
	r := newRig(t, nil)

	if err := r.snp.Initialize(nil, nil); !efi.IsStatus(err, efi.NotStarted) {
		t.Fatalf("Initialize before Start: %v", err)
	}

	r.up(t)
	mode, err := r.snp.Mode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.State != snp.Initialized {
		t.Fatalf("state = %s", mode.State)
	}

	if err := r.snp.Start(); !efi.IsStatus(err, efi.AlreadyStarted) {
		t.Fatalf("second Start: %v", err)
	}
	if err := r.snp.Reset(true); err != nil {
		t.Fatal(err)
	}
	if err := r.snp.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := r.snp.Stop(); err != nil {
		t.Fatal(err)
	}
	if r.nic.State() != snp.Stopped {
		t.Fatalf("state = %s", r.nic.State())
	}
}

func TestInitializeRejectsZeroExtraSize(t *testing.T) {
	r := newRig(t, nil)
	if err := r.snp.Start(); err != nil {
		t.Fatal(err)
	}

	zero := uint(0)
	calls := r.fw.Calls()

	var argErr *efi.ArgumentError
	if err := r.snp.Initialize(&zero, nil); !errors.As(err, &argErr) {
		t.Fatalf("got %v", err)
	}
	if r.fw.Calls() != calls {
		t.Fatal("rejected call reached firmware")
	}

	extra := uint(2048)
	if err := r.snp.Initialize(&extra, nil); err != nil {
		t.Fatal(err)
	}
}

func TestTransmitAndReceive(t *testing.T) {
	r := newRig(t, func(c *sim.NICConfig) { c.Loopback = true })
	r.up(t)

	if err := r.snp.ReceiveFilters(snp.ReceiveUnicast|snp.ReceiveBroadcast, 0, false, nil); err != nil {
		t.Fatal(err)
	}

	mode, err := r.snp.Mode()
	if err != nil {
		t.Fatal(err)
	}
	self := mode.CurrentAddress
	proto := uint16(0x88b5)
	payload := bytes.Repeat([]byte{0xab}, 46)

	if err := r.snp.Transmit(14, payload, nil, &self, &proto); err != nil {
		t.Fatal(err)
	}

	rec, ok := r.nic.LastTransmit()
	if !ok {
		t.Fatal("nothing transmitted")
	}
	if rec.BufferSize != 60 || rec.HeaderSize != 14 {
		t.Fatalf("buffer size %d, header size %d", rec.BufferSize, rec.HeaderSize)
	}
	if !bytes.Equal(rec.Frame[14:], payload) {
		t.Fatal("payload not placed after the header")
	}

	buf := make([]byte, 64)
	var hdr uint
	var src, dst snp.MacAddress
	var gotProto uint16
	n, err := r.snp.Receive(buf, &hdr, &src, &dst, &gotProto)
	if err != nil {
		t.Fatal(err)
	}
	if n != 60 || n > len(buf) {
		t.Fatalf("received %d bytes", n)
	}
	if hdr != 14 || gotProto != proto || src != self || dst != self {
		t.Fatalf("header %d proto %#x src %s dst %s", hdr, gotProto, src, dst)
	}

	if _, err := r.snp.Receive(buf, nil, nil, nil, nil); !efi.IsStatus(err, efi.NotReady) {
		t.Fatalf("empty queue: %v", err)
	}
}

func TestReceiveBufferTooSmall(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)

	if err := r.snp.ReceiveFilters(snp.ReceivePromiscuous, 0, false, nil); err != nil {
		t.Fatal(err)
	}

	mode, _ := r.snp.Mode()
	frame := sim.BuildFrame(mode.CurrentAddress, snp.MacAddress{0x02, 1, 2, 3, 4, 5}, 0x0800, make([]byte, 100))
	if err := r.nic.Inject(frame); err != nil {
		t.Fatal(err)
	}

	small := make([]byte, 32)
	n, err := r.snp.Receive(small, nil, nil, nil, nil)
	if !efi.IsStatus(err, efi.BufferTooSmall) || n != 0 {
		t.Fatalf("got %d, %v", n, err)
	}

	big := make([]byte, 1514)
	n, err = r.snp.Receive(big, nil, nil, nil, nil)
	if err != nil || n != len(frame) {
		t.Fatalf("got %d, %v", n, err)
	}
}

func TestRecycledTransmitBuffer(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)

	buf, err := r.snp.RecycledTransmitBuffer()
	if err != nil || buf != nil {
		t.Fatalf("nothing queued: %v, %v", buf, err)
	}

	dst := snp.MacAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	proto := uint16(0x0806)
	if err := r.snp.Transmit(14, []byte("arp who-has"), nil, &dst, &proto); err != nil {
		t.Fatal(err)
	}
	if r.snp.Pending() != 1 {
		t.Fatalf("pending = %d", r.snp.Pending())
	}

	intr, err := r.snp.InterruptStatus()
	if err != nil {
		t.Fatal(err)
	}
	if !intr.Transmit() || intr.Receive() {
		t.Fatalf("interrupts = %#x", uint32(intr))
	}

	buf, err = r.snp.RecycledTransmitBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 14+len("arp who-has") {
		t.Fatalf("recycled %d bytes", len(buf))
	}
	if r.snp.Pending() != 0 {
		t.Fatal("recycled frame still pending")
	}
}

func TestGetStatusNeitherDestination(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)

	if err := r.snp.GetStatus(nil, nil); err != nil {
		t.Fatal(err)
	}
}

func TestInterruptStatusBits(t *testing.T) {
	s := snp.InterruptStatus(0b0101)

	if !s.Receive() || s.Transmit() || !s.Command() || s.Software() {
		t.Fatalf("decoded %v %v %v %v", s.Receive(), s.Transmit(), s.Command(), s.Software())
	}
}

func TestTransmitArgumentErrors(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)
	calls := r.fw.Calls()

	var argErr *efi.ArgumentError
	if err := r.snp.Transmit(0, nil, nil, nil, nil); !errors.As(err, &argErr) {
		t.Errorf("empty payload: %v", err)
	}
	if r.fw.Calls() != calls {
		t.Error("rejected call reached firmware")
	}
}

// recordingInvoker passes calls through and keeps their arguments.
type recordingInvoker struct {
	efi.Invoker
	calls map[uintptr][][]efi.Arg
}

func (r *recordingInvoker) Invoke(fn uintptr, args ...efi.Arg) efi.Status {
	r.calls[fn] = append(r.calls[fn], append([]efi.Arg(nil), args...))
	return r.Invoker.Invoke(fn, args...)
}

func TestTransmitWithoutAddressesReachesFirmware(t *testing.T) {
	fw := sim.New(nil)
	sim.NewNIC(fw, sim.DefaultNICConfig())

	entry := fw.Entry()
	rec := &recordingInvoker{Invoker: entry.Invoker, calls: make(map[uintptr][][]efi.Arg)}
	entry.Invoker = rec

	bt, err := efi.NewBootTable(entry)
	if err != nil {
		t.Fatal(err)
	}
	n, err := snp.Open(bt)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Start(); err != nil {
		t.Fatal(err)
	}
	if err := n.Initialize(nil, nil); err != nil {
		t.Fatal(err)
	}

	table, err := efi.OpenProtocol(bt, snp.ProtocolGUID, func(i *efi.Interface) (*snp.Table, error) {
		return (*snp.Table)(i.Pointer()), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = n.Transmit(14, make([]byte, 46), nil, nil, nil)

	sent := rec.calls[table.Transmit]
	if len(sent) != 1 {
		t.Fatalf("%d transmit calls", len(sent))
	}
	if size := sent[0][2].Uint(); size != 60 {
		t.Fatalf("buffer size = %d, want 60", size)
	}

	// The emulated device cannot build a header without a destination.
	var argErr *efi.ArgumentError
	if errors.As(err, &argErr) || !efi.IsStatus(err, efi.InvalidParameter) {
		t.Fatalf("err = %v", err)
	}
	if n.Pending() != 0 {
		t.Fatalf("rejected frame still pending: %d", n.Pending())
	}
}

func TestStatisticsSentinel(t *testing.T) {
	r := newRig(t, func(c *sim.NICConfig) {
		c.Unsupported = []snp.Counter{snp.Collisions}
		c.Loopback = true
	})
	r.up(t)

	if err := r.snp.ReceiveFilters(snp.ReceivePromiscuous, 0, false, nil); err != nil {
		t.Fatal(err)
	}
	mode, _ := r.snp.Mode()
	proto := uint16(0x0800)
	if err := r.snp.Transmit(14, make([]byte, 50), nil, &mode.CurrentAddress, &proto); err != nil {
		t.Fatal(err)
	}

	stats, err := r.snp.CollectStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stats.Collisions(); ok {
		t.Error("unsupported counter reported as present")
	}
	if v, ok := stats.TxGoodFrames(); !ok || v != 1 {
		t.Errorf("tx good = %d, %v", v, ok)
	}
	if v, ok := stats.RxTotalBytes(); !ok || v != 64 {
		t.Errorf("rx bytes = %d, %v", v, ok)
	}
	if snap := stats.Snapshot(); snap["collisions"] != nil || snap["tx_good_frames"] == nil {
		t.Errorf("snapshot = %v", snap)
	}

	if err := r.snp.ResetStatistics(); err != nil {
		t.Fatal(err)
	}
	stats, err = r.snp.CollectStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := stats.TxGoodFrames(); v != 0 {
		t.Errorf("tx good after reset = %d", v)
	}
	if _, ok := stats.Collisions(); ok {
		t.Error("reset must not make an unsupported counter present")
	}
}

func TestStatisticsFailureReturnsNothing(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)
	r.nic.FailNext("Statistics", efi.DeviceError)

	stats, err := r.snp.CollectStatistics()
	if stats != nil || !efi.IsStatus(err, efi.DeviceError) {
		t.Fatalf("got %v, %v", stats, err)
	}
}

func TestMcastIPToMAC(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)

	cases := []struct {
		addr string
		want snp.MacAddress
	}{
		{"224.0.0.251", snp.MacAddress{0x01, 0x00, 0x5e, 0x00, 0x00, 0xfb}},
		{"239.255.1.2", snp.MacAddress{0x01, 0x00, 0x5e, 0x7f, 0x01, 0x02}},
		{"ff02::1:ff00:1234", snp.MacAddress{0x33, 0x33, 0xff, 0x00, 0x12, 0x34}},
	}

	for _, c := range cases {
		ip, v6 := snp.IPFrom(netip.MustParseAddr(c.addr))
		mac, err := r.snp.McastIPToMAC(v6, ip)
		if err != nil {
			t.Errorf("%s: %v", c.addr, err)
			continue
		}
		if mac != c.want {
			t.Errorf("%s: got %s, want %s", c.addr, mac, c.want)
		}
	}

	ip, _ := snp.IPFrom(netip.MustParseAddr("10.0.0.1"))
	if _, err := r.snp.McastIPToMAC(false, ip); !efi.IsStatus(err, efi.InvalidParameter) {
		t.Errorf("unicast address: %v", err)
	}
}

func TestReceiveFiltersTooManyMulticast(t *testing.T) {
	r := newRig(t, func(c *sim.NICConfig) { c.MaxMCastFilterCount = 2 })
	r.up(t)
	calls := r.fw.Calls()

	list := []snp.MacAddress{
		{0x01, 0x00, 0x5e, 0, 0, 1},
		{0x01, 0x00, 0x5e, 0, 0, 2},
		{0x01, 0x00, 0x5e, 0, 0, 3},
	}

	var argErr *efi.ArgumentError
	if err := r.snp.ReceiveFilters(snp.ReceiveMulticast, 0, false, list); !errors.As(err, &argErr) {
		t.Fatalf("got %v", err)
	}
	if r.fw.Calls() != calls {
		t.Fatal("rejected call reached firmware")
	}

	if err := r.snp.ReceiveFilters(snp.ReceiveMulticast, 0, false, list[:2]); err != nil {
		t.Fatal(err)
	}
	mode, _ := r.snp.Mode()
	if got := mode.MulticastFilters(); len(got) != 2 || got[1] != list[1] {
		t.Fatalf("filters = %v", got)
	}

	if err := r.snp.ReceiveFilters(0, 0, true, list); err != nil {
		t.Fatal(err)
	}
	if len(mode.MulticastFilters()) != 0 {
		t.Fatal("reset did not clear the multicast list")
	}
}

func TestMulticastFilterDelivery(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)

	group := snp.MacAddress{0x01, 0x00, 0x5e, 0x00, 0x00, 0xfb}
	other := snp.MacAddress{0x01, 0x00, 0x5e, 0x00, 0x00, 0x01}
	src := snp.MacAddress{0x02, 0, 0, 0, 0, 9}

	if err := r.snp.ReceiveFilters(snp.ReceiveMulticast, 0, false, []snp.MacAddress{group}); err != nil {
		t.Fatal(err)
	}

	_ = r.nic.Inject(sim.BuildFrame(other, src, 0x0800, make([]byte, 46)))
	_ = r.nic.Inject(sim.BuildFrame(group, src, 0x0800, make([]byte, 46)))
	if r.nic.RxQueued() != 1 {
		t.Fatalf("queued %d frames", r.nic.RxQueued())
	}
}

func TestStationAddress(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)

	var argErr *efi.ArgumentError
	if err := r.snp.StationAddress(false, nil); !errors.As(err, &argErr) {
		t.Fatalf("got %v", err)
	}

	addr := snp.MacAddress{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	if err := r.snp.StationAddress(false, &addr); err != nil {
		t.Fatal(err)
	}
	mode, _ := r.snp.Mode()
	if mode.CurrentAddress != addr {
		t.Fatalf("current = %s", mode.CurrentAddress)
	}

	if err := r.snp.StationAddress(true, nil); err != nil {
		t.Fatal(err)
	}
	if mode.CurrentAddress != mode.PermanentAddress {
		t.Fatal("reset did not restore the permanent address")
	}
}

func TestNVData(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := r.snp.WriteNVData(16, want); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 8)
	if err := r.snp.ReadNVData(16, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back % x", got)
	}

	if err := r.snp.ReadNVData(510, make([]byte, 4)); !efi.IsStatus(err, efi.InvalidParameter) {
		t.Fatalf("out of range: %v", err)
	}

	var argErr *efi.ArgumentError
	if err := r.snp.ReadNVData(0, nil); !errors.As(err, &argErr) {
		t.Fatalf("empty buffer: %v", err)
	}
}

func TestAfterExitBootServices(t *testing.T) {
	r := newRig(t, nil)
	r.up(t)

	if _, err := r.table.ExitBootServices(); err != nil {
		t.Fatal(err)
	}
	calls := r.fw.Calls()

	checks := map[string]error{
		"Start":     r.snp.Start(),
		"Shutdown":  r.snp.Shutdown(),
		"GetStatus": r.snp.GetStatus(nil, nil),
	}
	_, checks["Mode"] = r.snp.Mode()
	_, checks["Receive"] = r.snp.Receive(make([]byte, 64), nil, nil, nil, nil)
	_, checks["CollectStatistics"] = r.snp.CollectStatistics()

	for name, err := range checks {
		if !errors.Is(err, efi.ErrBootServicesExited) {
			t.Errorf("%s: got %v", name, err)
		}
	}
	if r.fw.Calls() != calls {
		t.Error("a call reached firmware after exit")
	}
	if v := r.fw.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestOpenAll(t *testing.T) {
	fw := sim.New(nil)
	first := sim.NewNIC(fw, sim.DefaultNICConfig())
	cfg := sim.DefaultNICConfig()
	cfg.MAC = snp.MacAddress{0x52, 0x54, 0x00, 0xaa, 0xbb, 0xcc}
	second := sim.NewNIC(fw, cfg)

	bt, err := efi.NewBootTable(fw.Entry())
	if err != nil {
		t.Fatal(err)
	}
	nics, err := snp.OpenAll(bt)
	if err != nil {
		t.Fatal(err)
	}
	if len(nics) != 2 || nics[0].Handle() != first.Handle() || nics[1].Handle() != second.Handle() {
		t.Fatalf("opened %d interfaces", len(nics))
	}

	rev, err := nics[1].Revision()
	if err != nil || rev != snp.Revision {
		t.Fatalf("revision %#x, %v", rev, err)
	}
}

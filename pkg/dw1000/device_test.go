package dw1000

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/herlein/gouwb/pkg/radio"
)

// fakeBus emulates the DW1000 register files behind the SPI header codec
type fakeBus struct {
	mem     map[uint8][]byte
	headers [][]byte
	rxQueue [][]byte
	stamp   uint64
}

func newFakeBus() *fakeBus {
	b := &fakeBus{mem: map[uint8][]byte{}, stamp: 0xFF_0000_0000}
	binary.LittleEndian.PutUint32(b.file(RegDevID), DeviceID)
	return b
}

func (b *fakeBus) file(reg uint8) []byte {
	if b.mem[reg] == nil {
		b.mem[reg] = make([]byte, 0x3000)
	}
	return b.mem[reg]
}

func (b *fakeBus) decode(w []byte) (reg uint8, sub int, write bool, n int) {
	reg = w[0] & 0x3F
	write = w[0]&headerWrite != 0
	n = 1
	if w[0]&headerSub != 0 {
		sub = int(w[1] & 0x7F)
		n = 2
		if w[1]&headerExtSub != 0 {
			sub |= int(w[2]) << 7
			n = 3
		}
	}
	return
}

func (b *fakeBus) Tx(w, r []byte) error {
	reg, sub, write, n := b.decode(w)
	b.headers = append(b.headers, append([]byte(nil), w[:n]...))
	f := b.file(reg)

	if !write {
		copy(r[n:], f[sub:])
		return nil
	}

	data := w[n:]
	if reg == RegSysStatus {
		// write one to clear
		for i, v := range data {
			f[sub+i] &^= v
		}
		return nil
	}
	copy(f[sub:], data)

	if reg == RegSysCtrl && sub == 0 {
		b.control(data)
	}
	return nil
}

func (b *fakeBus) status() uint64 {
	var buf [8]byte
	copy(buf[:], b.file(RegSysStatus)[:5])
	return binary.LittleEndian.Uint64(buf[:])
}

func (b *fakeBus) setStatus(bits uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], b.status()|bits)
	copy(b.file(RegSysStatus), buf[:5])
}

func (b *fakeBus) setStamp(reg uint8) {
	b.stamp += 1000
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], b.stamp)
	copy(b.file(reg), buf[:5])
}

func (b *fakeBus) control(data []byte) {
	switch {
	case data[0]&CtrlTxStart != 0:
		b.setStamp(RegTxTime)
		b.setStatus(statusTxDone)
	case len(data) > 1 && data[1]&(CtrlRxEnable>>8) != 0:
		if len(b.rxQueue) == 0 {
			return
		}
		frame := b.rxQueue[0]
		b.rxQueue = b.rxQueue[1:]
		copy(b.file(RegRxBuffer), frame)
		binary.LittleEndian.PutUint32(b.file(RegRxFinfo), uint32(len(frame)+crcLen))
		b.setStamp(RegRxTime)
		b.setStatus(statusRxGood)
	}
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) u32(reg uint8, sub int) uint32 {
	return binary.LittleEndian.Uint32(b.file(reg)[sub:])
}

func (b *fakeBus) u16(reg uint8, sub int) uint16 {
	return binary.LittleEndian.Uint16(b.file(reg)[sub:])
}

func newTestDevice(bus *fakeBus) *Device {
	return New(bus, Config{Name: "test", ReceiveTimeout: 5 * time.Millisecond})
}

func TestHeader(t *testing.T) {
	tests := []struct {
		name  string
		reg   uint8
		sub   uint16
		write bool
		want  []byte
	}{
		{"read no sub", RegDevID, 0, false, []byte{0x00}},
		{"write no sub", RegSysStatus, 0, true, []byte{0x8F}},
		{"short sub", RegOTPIf, SubOTPCtrl, true, []byte{0xED, 0x06}},
		{"extended sub", RegLDEIf, SubLDECfg2, false, []byte{0x6E, 0x86, 0x30}},
		{"largest short sub", RegAGCCtrl, 0x7F, false, []byte{0x63, 0x7F}},
		{"first extended sub", RegAGCCtrl, 0x80, false, []byte{0x63, 0x80, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := header(tt.reg, tt.sub, tt.write)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("header() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestInitialiseRejectsWrongDeviceID(t *testing.T) {
	bus := newFakeBus()
	binary.LittleEndian.PutUint32(bus.file(RegDevID), 0xFFFFFFFF)

	err := newTestDevice(bus).Initialise()
	if !errors.Is(err, ErrDeviceID) {
		t.Fatalf("Initialise() error = %v, want %v", err, ErrDeviceID)
	}
}

func TestInitialiseProgramsRadio(t *testing.T) {
	bus := newFakeBus()
	dev := New(bus, Config{AntennaDelay: 16450})

	if err := dev.Initialise(); err != nil {
		t.Fatalf("Initialise() error: %v", err)
	}

	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"CHAN_CTRL", bus.u32(RegChanCtrl, 0), chanCtrl},
		{"AGC_TUNE2", bus.u32(RegAGCCtrl, SubAGCTune2), agcTune2},
		{"DRX_TUNE2", bus.u32(RegDRXConf, SubDRXTune2), drxTune2},
		{"LDE_CFG2", uint32(bus.u16(RegLDEIf, SubLDECfg2)), ldeCfg2},
		{"TX_ANTD", uint32(bus.u16(RegTxAntd, 0)), 16450},
		{"LDE_RXANTD", uint32(bus.u16(RegLDEIf, SubLDERxAntd)), 16450},
		{"RX_FWTO", uint32(bus.u16(RegRxFwto, 0)), uint32(DefaultReceiveTimeout.Nanoseconds() / fwtoUnitNanos)},
		{"SYS_MASK", bus.u32(RegSysMask, 0), 0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = 0x%08X, want 0x%08X", c.name, c.got, c.want)
		}
	}
	if got := bus.u32(RegSysCfg, 0); got&CfgRxWTOE == 0 {
		t.Errorf("SYS_CFG = 0x%08X, frame wait timeout not enabled", got)
	}
}

func TestSoftResetSequence(t *testing.T) {
	bus := newFakeBus()
	if err := newTestDevice(bus).Reset(); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}

	want := [][]byte{
		{headerWrite | RegPMSC},
		{headerWrite | headerSub | RegPMSC, SubPMSCReset},
		{headerWrite | headerSub | RegPMSC, SubPMSCReset},
	}
	if len(bus.headers) != len(want) {
		t.Fatalf("got %d transactions, want %d", len(bus.headers), len(want))
	}
	for i := range want {
		if !bytes.Equal(bus.headers[i], want[i]) {
			t.Errorf("transaction %d header = % X, want % X", i, bus.headers[i], want[i])
		}
	}
	if got := bus.file(RegPMSC)[SubPMSCReset]; got != 0xF0 {
		t.Errorf("reset bits = 0x%02X, want 0xF0", got)
	}
}

func TestTransmit(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus)
	payload := []byte{0xC5, 0x01, 1, 1, 1, 1, 1, 1, 1, 1}

	before, _ := dev.LastTransmitTimestamp()
	if err := dev.Transmit(payload); err != nil {
		t.Fatalf("Transmit() error: %v", err)
	}

	if got := bus.file(RegTxBuffer)[:len(payload)]; !bytes.Equal(got, payload) {
		t.Errorf("TX_BUFFER = % X, want % X", got, payload)
	}
	if got := bus.u32(RegTxFctrl, 0); got&0x7F != uint32(len(payload)+crcLen) {
		t.Errorf("TX_FCTRL length = %d, want %d", got&0x7F, len(payload)+crcLen)
	}
	if bus.status()&statusTxDone != 0 {
		t.Error("transmit events not cleared")
	}

	after, err := dev.LastTransmitTimestamp()
	if err != nil {
		t.Fatalf("LastTransmitTimestamp() error: %v", err)
	}
	if after == before || uint64(after) != bus.stamp&radio.TimestampMask {
		t.Errorf("tx timestamp = 0x%010X, want 0x%010X", uint64(after), bus.stamp)
	}
}

func TestTransmitRejectsOversizedFrame(t *testing.T) {
	dev := newTestDevice(newFakeBus())
	if err := dev.Transmit(make([]byte, maxFrameLen)); err == nil {
		t.Error("Transmit() accepted an oversized frame")
	}
}

func TestReceiveFrame(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus)
	frame := []byte{0xC5, 0x07, 2, 2, 2, 2, 2, 2, 2, 2}
	bus.rxQueue = append(bus.rxQueue, frame)

	if err := dev.ArmReceive(); err != nil {
		t.Fatalf("ArmReceive() error: %v", err)
	}
	got, err := dev.Receive()
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("Receive() = % X, want % X", got, frame)
	}

	ts, err := dev.LastReceiveTimestamp()
	if err != nil || uint64(ts) != bus.stamp {
		t.Errorf("LastReceiveTimestamp() = 0x%010X, %v", uint64(ts), err)
	}

	if bus.status()&StatusRxFCG == 0 {
		t.Fatal("event flag should stay set until cleared")
	}
	if err := dev.ClearEventFlag(); err != nil {
		t.Fatalf("ClearEventFlag() error: %v", err)
	}
	if bus.status()&statusRxGood != 0 {
		t.Errorf("status 0x%010X still has receive events", bus.status())
	}
}

func TestReceiveTimeout(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus)

	dev.ArmReceive()
	start := time.Now()
	_, err := dev.Receive()
	if !errors.Is(err, radio.ErrNoFrame) {
		t.Fatalf("Receive() error = %v, want %v", err, radio.ErrNoFrame)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("Receive() returned before the timeout")
	}
	if got := bus.u16(RegSysCtrl, 0); got != CtrlTRxOff {
		t.Errorf("SYS_CTRL = 0x%04X, receiver not turned off", got)
	}
}

func TestReceiveError(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus)
	bus.setStatus(StatusRxFCE)

	_, err := dev.Receive()
	if !errors.Is(err, radio.ErrNoFrame) {
		t.Fatalf("Receive() error = %v, want %v", err, radio.ErrNoFrame)
	}
	if bus.status()&StatusRxFCE != 0 {
		t.Error("receive error not cleared")
	}
}

func TestStatusFlags(t *testing.T) {
	bus := newFakeBus()
	bus.setStatus(StatusCPLock | StatusRxFCG | StatusTxPUTE)

	st, err := newTestDevice(bus).Status()
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	want := []string{"CPLOCK", "RXFCG", "TXPUTE"}
	if len(st.Flags) != len(want) {
		t.Fatalf("Flags = %v, want %v", st.Flags, want)
	}
	for i := range want {
		if st.Flags[i] != want[i] {
			t.Errorf("Flags[%d] = %s, want %s", i, st.Flags[i], want[i])
		}
	}
}

func TestDumpRegisters(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus)
	if err := dev.Initialise(); err != nil {
		t.Fatalf("Initialise() error: %v", err)
	}
	binary.LittleEndian.PutUint64(bus.file(RegEUI), 0x0102030405060708)
	bus.setStatus(StatusCPLock)

	s, err := dev.DumpRegisters()
	if err != nil {
		t.Fatalf("DumpRegisters() error: %v", err)
	}
	if s.DevID != DeviceID || s.EUI != 0x0102030405060708 {
		t.Errorf("id = 0x%08X eui = 0x%016X", s.DevID, s.EUI)
	}
	if s.Channel() != Channel || s.PreambleCode() != PreambleCode {
		t.Errorf("channel %d code %d, want %d %d", s.Channel(), s.PreambleCode(), Channel, PreambleCode)
	}
	if s.TxAntd != DefaultAntennaDelay || s.Name != "test" {
		t.Errorf("antd = %d name = %q", s.TxAntd, s.Name)
	}
	if len(s.Flags) != 1 || s.Flags[0] != "CPLOCK" {
		t.Errorf("flags = %v", s.Flags)
	}
}

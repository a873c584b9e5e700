// Package dw1000 drives a Decawave DW1000 UWB transceiver over SPI and
// exposes it as a radio.Endpoint.
package dw1000

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/herlein/gouwb/pkg/radio"
)

const (
	DefaultReceiveTimeout  = 50 * time.Millisecond
	DefaultTransmitTimeout = 10 * time.Millisecond

	pollInterval = 200 * time.Microsecond
	maxFrameLen  = 127
	crcLen       = 2
)

// Config holds per-radio wiring and timing
type Config struct {
	Name            string        // label for logs
	ReceiveTimeout  time.Duration // Receive gives up after this long
	TransmitTimeout time.Duration
	AntennaDelay    uint16 // ticks, applied to TX_ANTD and LDE_RXANTD

	// Optional GPIO lines. Without ResetPin Reset falls back to a soft
	// reset; without IRQPin SYS_STATUS is polled.
	ResetPin gpio.PinIO
	IRQPin   gpio.PinIO

	Logger *slog.Logger
}

// Device is one DW1000 on a Bus
type Device struct {
	bus    Bus
	config Config
	log    *slog.Logger
}

// New wraps a bus. The radio is not touched until Reset or Initialise.
func New(bus Bus, config Config) *Device {
	if config.ReceiveTimeout == 0 {
		config.ReceiveTimeout = DefaultReceiveTimeout
	}
	if config.TransmitTimeout == 0 {
		config.TransmitTimeout = DefaultTransmitTimeout
	}
	if config.AntennaDelay == 0 {
		config.AntennaDelay = DefaultAntennaDelay
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	if config.Name != "" {
		log = log.With("radio", config.Name)
	}
	return &Device{bus: bus, config: config, log: log}
}

// Close releases the bus
func (d *Device) Close() error {
	return d.bus.Close()
}

func (d *Device) String() string {
	if d.config.Name != "" {
		return d.config.Name
	}
	return fmt.Sprintf("%v", d.bus)
}

// ID reads the DEV_ID register
func (d *Device) ID() (uint32, error) {
	return d.read32(RegDevID, 0)
}

// Reset pulses RSTn low when a reset line is wired, otherwise soft resets
func (d *Device) Reset() error {
	if d.config.ResetPin == nil {
		return d.SoftReset()
	}

	if err := d.config.ResetPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("drive reset low: %w", err)
	}
	time.Sleep(2 * time.Millisecond)

	// RSTn is open drain; release it and let the chip pull it up
	if err := d.config.ResetPin.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("release reset: %w", err)
	}
	time.Sleep(5 * time.Millisecond)

	d.log.Debug("hard reset")
	return nil
}

// SoftReset switches to the crystal clock and cycles the PMSC reset bits
func (d *Device) SoftReset() error {
	if err := d.write8(RegPMSC, SubPMSCCtrl0, 0x01); err != nil {
		return fmt.Errorf("select xti clock: %w", err)
	}
	if err := d.write8(RegPMSC, SubPMSCReset, 0x00); err != nil {
		return fmt.Errorf("assert soft reset: %w", err)
	}
	time.Sleep(time.Millisecond)
	if err := d.write8(RegPMSC, SubPMSCReset, 0xF0); err != nil {
		return fmt.Errorf("release soft reset: %w", err)
	}
	time.Sleep(5 * time.Millisecond)

	d.log.Debug("soft reset")
	return nil
}

// Initialise verifies the device id, loads the LDE microcode and programs
// the channel, tuning, antenna delay and event mask registers
func (d *Device) Initialise() error {
	id, err := d.ID()
	if err != nil {
		return err
	}
	if id != DeviceID {
		return fmt.Errorf("%w: 0x%08X", ErrDeviceID, id)
	}

	if err := d.loadLDE(); err != nil {
		return err
	}

	sysCfg := uint32(CfgHIRQPol | CfgDisDRXB | CfgRxWTOE)
	fwto := uint32(d.config.ReceiveTimeout.Nanoseconds() / fwtoUnitNanos)
	if fwto > 0xFFFF {
		fwto = 0xFFFF
	}

	mask := uint32(0)
	if d.config.IRQPin != nil {
		mask = StatusTxFRS | StatusRxFCG | statusRxError | statusRxTimeout
	}

	table := []regWrite{
		{"SYS_CFG", RegSysCfg, 0, 4, sysCfg},
		{"CHAN_CTRL", RegChanCtrl, 0, 4, chanCtrl},
		{"AGC_TUNE1", RegAGCCtrl, SubAGCTune1, 2, agcTune1},
		{"AGC_TUNE2", RegAGCCtrl, SubAGCTune2, 4, agcTune2},
		{"AGC_TUNE3", RegAGCCtrl, SubAGCTune3, 2, agcTune3},
		{"DRX_TUNE0b", RegDRXConf, SubDRXTune0b, 2, drxTune0b},
		{"DRX_TUNE1a", RegDRXConf, SubDRXTune1a, 2, drxTune1a},
		{"DRX_TUNE1b", RegDRXConf, SubDRXTune1b, 2, drxTune1b},
		{"DRX_TUNE2", RegDRXConf, SubDRXTune2, 4, drxTune2},
		{"DRX_TUNE4H", RegDRXConf, SubDRXTune4H, 2, drxTune4H},
		{"LDE_CFG1", RegLDEIf, SubLDECfg1, 1, ldeCfg1},
		{"LDE_CFG2", RegLDEIf, SubLDECfg2, 2, ldeCfg2},
		{"LDE_REPC", RegLDEIf, SubLDERepc, 2, ldeRepc},
		{"RF_RXCTRLH", RegRFConf, SubRFRxCtrlH, 1, rfRxCtrlH},
		{"RF_TXCTRL", RegRFConf, SubRFTxCtrl, 4, rfTxCtrl},
		{"TC_PGDELAY", RegTxCal, SubTCPGDelay, 1, tcPGDelay},
		{"FS_PLLCFG", RegFSCtrl, SubFSPLLCfg, 4, fsPLLCfg},
		{"FS_PLLTUNE", RegFSCtrl, SubFSPLLTune, 1, fsPLLTune},
		{"TX_POWER", RegTxPower, 0, 4, txPower},
		{"TX_ANTD", RegTxAntd, 0, 2, uint32(d.config.AntennaDelay)},
		{"LDE_RXANTD", RegLDEIf, SubLDERxAntd, 2, uint32(d.config.AntennaDelay)},
		{"RX_FWTO", RegRxFwto, 0, 2, fwto},
		{"SYS_MASK", RegSysMask, 0, 4, mask},
	}
	if err := d.apply(table); err != nil {
		return err
	}

	if d.config.IRQPin != nil {
		if err := d.config.IRQPin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
			return fmt.Errorf("configure irq pin: %w", err)
		}
	}

	// Start from a clean event state
	if err := d.write40(RegSysStatus, 0, 0xFFFFFFFFFF); err != nil {
		return err
	}

	d.log.Debug("initialised", "channel", Channel, "antenna_delay", d.config.AntennaDelay)
	return nil
}

// loadLDE copies the leading edge detection microcode from OTP into RAM
func (d *Device) loadLDE() error {
	if err := d.write16(RegPMSC, SubPMSCCtrl0, 0x0301); err != nil {
		return fmt.Errorf("lde load clocks: %w", err)
	}
	if err := d.write16(RegOTPIf, SubOTPCtrl, otpLDELoad); err != nil {
		return fmt.Errorf("lde load: %w", err)
	}
	time.Sleep(150 * time.Microsecond)
	if err := d.write16(RegPMSC, SubPMSCCtrl0, 0x0200); err != nil {
		return fmt.Errorf("lde restore clocks: %w", err)
	}
	return nil
}

// ArmReceive turns the receiver on
func (d *Device) ArmReceive() error {
	return d.write16(RegSysCtrl, 0, CtrlRxEnable)
}

// Transmit sends one frame immediately and waits for the frame-sent event
func (d *Device) Transmit(data []byte) error {
	if len(data)+crcLen > maxFrameLen {
		return fmt.Errorf("frame too long: %d bytes", len(data))
	}

	if err := d.write(RegTxBuffer, 0, data); err != nil {
		return err
	}
	fctrl := uint32(txFctrlBase | (len(data) + crcLen))
	if err := d.write32(RegTxFctrl, 0, fctrl); err != nil {
		return err
	}
	if err := d.write8(RegSysCtrl, 0, CtrlTxStart); err != nil {
		return err
	}

	status, err := d.wait(StatusTxFRS, d.config.TransmitTimeout)
	if err != nil {
		return err
	}
	if status&StatusTxFRS == 0 {
		return fmt.Errorf("%w: status 0x%010X", ErrTxTimeout, status)
	}
	return d.write32(RegSysStatus, 0, statusTxDone)
}

// Receive waits for a good frame and returns its payload without the CRC.
// The receive event flags stay set until ClearEventFlag.
func (d *Device) Receive() ([]byte, error) {
	status, err := d.wait(StatusRxFCG|statusRxError|statusRxTimeout, d.config.ReceiveTimeout)
	if err != nil {
		return nil, err
	}

	if status&StatusRxFCG == 0 {
		d.abortReceive()
		if status&statusRxError != 0 {
			return nil, fmt.Errorf("%w: rx error %v", radio.ErrNoFrame, StatusFlags(status&statusRxError))
		}
		return nil, radio.ErrNoFrame
	}

	finfo, err := d.read32(RegRxFinfo, 0)
	if err != nil {
		return nil, err
	}
	n := int(finfo&0x7F) - crcLen
	if n < 0 {
		n = 0
	}
	return d.read(RegRxBuffer, 0, n)
}

// abortReceive turns the receiver off and clears receive events
func (d *Device) abortReceive() {
	if err := d.write16(RegSysCtrl, 0, CtrlTRxOff); err != nil {
		d.log.Debug("trx off failed", "error", err)
	}
	if err := d.write32(RegSysStatus, 0, statusRxGood|statusRxError|statusRxTimeout); err != nil {
		d.log.Debug("clear rx status failed", "error", err)
	}
}

// wait returns the status once any of the bits is set, or the last status
// read when the timeout expires
func (d *Device) wait(bits uint64, timeout time.Duration) (uint64, error) {
	deadline := time.Now().Add(timeout)
	for {
		status, err := d.read40(RegSysStatus, 0)
		if err != nil {
			return 0, err
		}
		if status&bits != 0 {
			return status, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return status, nil
		}

		if d.config.IRQPin != nil {
			d.config.IRQPin.WaitForEdge(remaining)
		} else {
			time.Sleep(pollInterval)
		}
	}
}

// LastTransmitTimestamp reads the adjusted TX stamp of the last frame sent
func (d *Device) LastTransmitTimestamp() (radio.Timestamp, error) {
	v, err := d.read40(RegTxTime, 0)
	return radio.Timestamp(v), err
}

// LastReceiveTimestamp reads the adjusted RX stamp of the last frame received
func (d *Device) LastReceiveTimestamp() (radio.Timestamp, error) {
	v, err := d.read40(RegRxTime, 0)
	return radio.Timestamp(v), err
}

// Status reads SYS_STATUS
func (d *Device) Status() (radio.Status, error) {
	raw, err := d.read40(RegSysStatus, 0)
	if err != nil {
		return radio.Status{}, err
	}
	return radio.Status{Raw: raw, Flags: StatusFlags(raw)}, nil
}

// ClearEventFlag clears the good-frame receive events so the receiver can
// be armed again
func (d *Device) ClearEventFlag() error {
	return d.write32(RegSysStatus, 0, statusRxGood)
}

var _ radio.Endpoint = (*Device)(nil)

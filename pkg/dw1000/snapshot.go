package dw1000

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Snapshot holds the identity and configuration registers of one radio
type Snapshot struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`

	DevID     uint32   `json:"dev_id"`
	EUI       uint64   `json:"eui"`
	SysCfg    uint32   `json:"sys_cfg"`
	ChanCtrl  uint32   `json:"chan_ctrl"`
	TxPower   uint32   `json:"tx_power"`
	TxAntd    uint16   `json:"tx_antd"`
	SysMask   uint32   `json:"sys_mask"`
	SysStatus uint64   `json:"sys_status"`
	Flags     []string `json:"flags"`
	SysTime   uint64   `json:"sys_time"`
}

// DumpRegisters reads the identity, configuration and status registers
func (d *Device) DumpRegisters() (*Snapshot, error) {
	s := &Snapshot{Name: d.String(), Timestamp: time.Now()}

	var err error
	if s.DevID, err = d.ID(); err != nil {
		return nil, fmt.Errorf("failed to read DEV_ID: %w", err)
	}

	eui, err := d.read(RegEUI, 0, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to read EUI: %w", err)
	}
	s.EUI = binary.LittleEndian.Uint64(eui)

	reads := []struct {
		name string
		reg  uint8
		dst  *uint32
	}{
		{"SYS_CFG", RegSysCfg, &s.SysCfg},
		{"CHAN_CTRL", RegChanCtrl, &s.ChanCtrl},
		{"TX_POWER", RegTxPower, &s.TxPower},
		{"SYS_MASK", RegSysMask, &s.SysMask},
	}
	for _, r := range reads {
		if *r.dst, err = d.read32(r.reg, 0); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", r.name, err)
		}
	}

	antd, err := d.read(RegTxAntd, 0, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to read TX_ANTD: %w", err)
	}
	s.TxAntd = binary.LittleEndian.Uint16(antd)

	if s.SysStatus, err = d.read40(RegSysStatus, 0); err != nil {
		return nil, fmt.Errorf("failed to read SYS_STATUS: %w", err)
	}
	s.Flags = StatusFlags(s.SysStatus)

	if s.SysTime, err = d.read40(RegSysTime, 0); err != nil {
		return nil, fmt.Errorf("failed to read SYS_TIME: %w", err)
	}
	return s, nil
}

// Channel returns the TX channel number from CHAN_CTRL
func (s *Snapshot) Channel() uint32 {
	return s.ChanCtrl & 0x0F
}

// PreambleCode returns the TX preamble code from CHAN_CTRL
func (s *Snapshot) PreambleCode() uint32 {
	return (s.ChanCtrl >> 22) & 0x1F
}

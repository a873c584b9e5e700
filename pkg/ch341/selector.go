package ch341

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// DeviceSelector specifies how to identify a CH341A bridge
// Supported formats:
//   - ""           : Use first available device
//   - "serial"     : Match by serial number
//   - "bus:addr"   : Match by USB bus and address (e.g., "1:10")
//   - "#N"         : Use Nth device, 0-indexed (e.g., "#0", "#1")
type DeviceSelector string

// match is a parsed selector
type match struct {
	index  int // -1 when not selecting by index
	bus    int
	addr   int
	serial string
	byLoc  bool
}

func (s DeviceSelector) parse() (match, error) {
	sel := strings.TrimSpace(string(s))
	m := match{index: -1}

	if sel == "" {
		m.index = 0
		return m, nil
	}

	if strings.HasPrefix(sel, "#") {
		index, err := strconv.Atoi(sel[1:])
		if err != nil || index < 0 {
			return m, fmt.Errorf("invalid device index: %s", sel)
		}
		m.index = index
		return m, nil
	}

	if strings.Contains(sel, ":") {
		parts := strings.SplitN(sel, ":", 2)
		bus, err := strconv.Atoi(parts[0])
		if err != nil {
			return m, fmt.Errorf("invalid bus number: %s", parts[0])
		}
		addr, err := strconv.Atoi(parts[1])
		if err != nil {
			return m, fmt.Errorf("invalid address number: %s", parts[1])
		}
		m.bus, m.addr, m.byLoc = bus, addr, true
		return m, nil
	}

	m.serial = sel
	return m, nil
}

// pick returns the index of the selected device among candidates
func (m match) pick(devices []*Device) (int, error) {
	if len(devices) == 0 {
		return -1, fmt.Errorf("no CH341A devices found")
	}

	switch {
	case m.index >= 0:
		if m.index >= len(devices) {
			return -1, fmt.Errorf("device index %d out of range (found %d devices)", m.index, len(devices))
		}
		return m.index, nil

	case m.byLoc:
		for i, d := range devices {
			if d.Bus == m.bus && d.Address == m.addr {
				return i, nil
			}
		}
		return -1, fmt.Errorf("no CH341A found at bus %d address %d", m.bus, m.addr)

	default:
		found := -1
		for i, d := range devices {
			if d.Serial != m.serial {
				continue
			}
			if found >= 0 {
				return -1, fmt.Errorf("multiple devices found with serial %s; use bus:addr format (e.g., 1:10) or index format (e.g., #0)", m.serial)
			}
			found = i
		}
		if found < 0 {
			return -1, fmt.Errorf("no CH341A found with serial %s", m.serial)
		}
		return found, nil
	}
}

// SelectDevice opens the CH341A bridge matching the selector and closes
// every other one
func SelectDevice(context *gousb.Context, selector DeviceSelector) (*Device, error) {
	m, err := selector.parse()
	if err != nil {
		return nil, err
	}

	devices, err := FindAllDevices(context)
	if err != nil {
		return nil, err
	}

	selected, err := m.pick(devices)
	for i, d := range devices {
		if i != selected {
			d.Close()
		}
	}
	if err != nil {
		return nil, err
	}
	return devices[selected], nil
}

// SelectDevices opens one bridge per selector from a single enumeration.
// Bridges not chosen by any selector are closed.
func SelectDevices(context *gousb.Context, selectors ...DeviceSelector) ([]*Device, error) {
	matches := make([]match, len(selectors))
	for i, sel := range selectors {
		m, err := sel.parse()
		if err != nil {
			return nil, err
		}
		matches[i] = m
	}

	devices, err := FindAllDevices(context)
	if err != nil {
		return nil, err
	}

	picked := make([]int, len(matches))
	used := make(map[int]string, len(matches))
	for i, m := range matches {
		picked[i], err = m.pick(devices)
		if err == nil {
			if prev, dup := used[picked[i]]; dup {
				err = fmt.Errorf("selectors %q and %q match the same device", prev, selectors[i])
			}
			used[picked[i]] = string(selectors[i])
		}
		if err != nil {
			for _, d := range devices {
				d.Close()
			}
			return nil, err
		}
	}

	selected := make([]*Device, len(picked))
	for i, idx := range picked {
		selected[i] = devices[idx]
	}
	for i, d := range devices {
		if _, ok := used[i]; !ok {
			d.Close()
		}
	}
	return selected, nil
}

// DeviceFlagUsage returns usage text for a device selector flag
func DeviceFlagUsage() string {
	return `CH341A selector. Formats:
    ""        - Use first available device
    "serial"  - Match by serial number
    "bus:addr"- Match by USB location (e.g., "1:10")
    "#N"      - Use Nth device, 0-indexed (e.g., "#0", "#1")`
}

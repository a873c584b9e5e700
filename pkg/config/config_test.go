package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/herlein/gouwb/pkg/radio"
	"github.com/herlein/gouwb/pkg/ranging"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}

	rc := c.RangingConfig()
	if rc.FailureThreshold != 10 || rc.WindowSize != 5 {
		t.Errorf("threshold/window = %d/%d, want 10/5", rc.FailureThreshold, rc.WindowSize)
	}
	if rc.MinDistance != -0.05 || rc.MaxDistance != 7 {
		t.Errorf("bounds = (%v, %v), want (-0.05, 7)", rc.MinDistance, rc.MaxDistance)
	}
	if rc.CalibrationB != 154.7 || rc.CalibrationC != 154.3 {
		t.Errorf("calibration = %v/%v, want 154.7/154.3", rc.CalibrationB, rc.CalibrationC)
	}
	if got := c.Radios.Get(radio.AnchorC).Device; got != "#2" {
		t.Errorf("anchor-c device = %q, want #2", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero window", func(c *Config) { c.Ranging.WindowSize = 0 }},
		{"empty interval", func(c *Config) { c.Ranging.MinDistance = 7 }},
		{"zero threshold", func(c *Config) { c.Ranging.FailureThreshold = 0 }},
		{"unknown bus", func(c *Config) { c.Radios.AnchorB.Bus = "i2c" }},
		{"negative timeout", func(c *Config) { c.Radios.Tag.ReceiveTimeout = -time.Millisecond }},
		{"zero baseline", func(c *Config) { c.Position.Baseline = 0 }},
		{"bad qos", func(c *Config) { c.Vehicle.MQTT.QoS = 3 }},
		{"bad drop probability", func(c *Config) { c.Simulation.DropProbability = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			err := c.Validate()
			if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, ranging.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want %v", err, ErrInvalidConfig)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rig.yaml")

	c := Default()
	c.Ranging.CalibrationB = 150.25
	c.Radios.Tag = RadioConfig{
		Bus:            BusSPI,
		Device:         "/dev/spidev0.0",
		SpeedHz:        8000000,
		ResetPin:       "GPIO17",
		IRQPin:         "GPIO27",
		AntennaDelay:   16450,
		ReceiveTimeout: 20 * time.Millisecond,
	}
	c.Vehicle.MQTT.Broker = "localhost:1883"

	if err := SaveToFile(c, path); err != nil {
		t.Fatalf("SaveToFile() error: %v", err)
	}

	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if got.Radios.Tag != c.Radios.Tag {
		t.Errorf("tag radio = %+v, want %+v", got.Radios.Tag, c.Radios.Tag)
	}
	if got.Ranging != c.Ranging {
		t.Errorf("ranging = %+v, want %+v", got.Ranging, c.Ranging)
	}
	if got.Vehicle.MQTT.Broker != "localhost:1883" {
		t.Errorf("broker = %q", got.Vehicle.MQTT.Broker)
	}
	if got.Simulation.Turnaround != c.Simulation.Turnaround {
		t.Errorf("turnaround = %v, want %v", got.Simulation.Turnaround, c.Simulation.Turnaround)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.yaml")
	data := []byte(`
ranging:
  calibration_c: 153.9
radios:
  anchor_b:
    bus: spi
    device: /dev/spidev0.1
    receive_timeout: 80ms
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if c.Ranging.CalibrationC != 153.9 || c.Ranging.CalibrationB != 154.7 {
		t.Errorf("calibration = %v/%v", c.Ranging.CalibrationB, c.Ranging.CalibrationC)
	}
	b := c.Radios.AnchorB
	if b.Bus != BusSPI || b.ReceiveTimeout != 80*time.Millisecond {
		t.Errorf("anchor-b = %+v", b)
	}
	if c.Ranging.WindowSize != 5 || c.Position.Baseline != 1.2 {
		t.Error("defaults lost")
	}

	dc := b.DeviceConfig(radio.AnchorB)
	if dc.Name != "anchor-b" || dc.ReceiveTimeout != 80*time.Millisecond {
		t.Errorf("DeviceConfig() = %+v", dc)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.yaml")
	os.WriteFile(path, []byte("ranging:\n  window_size: 0\n"), 0644)

	if _, err := LoadFromFile(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadFromFile() error = %v, want %v", err, ErrInvalidConfig)
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromFile() of a missing file should fail")
	}
}

// Package config holds the deployment description of a ranging rig: how
// each radio is wired, the ranging constants and where steering goes.
package config

import (
	"fmt"
	"time"

	"github.com/herlein/gouwb/pkg/dw1000"
	"github.com/herlein/gouwb/pkg/radio"
	"github.com/herlein/gouwb/pkg/ranging"
	"github.com/herlein/gouwb/pkg/uwbsim"
	"github.com/herlein/gouwb/pkg/vehicle"
)

// ErrInvalidConfig is shared with the ranging package
var ErrInvalidConfig = ranging.ErrInvalidConfig

// Bus kinds
const (
	BusSPI   = "spi"
	BusCH341 = "ch341"
)

// Config is the root of a deployment file
type Config struct {
	Ranging    RangingConfig  `yaml:"ranging"`
	Radios     RadiosConfig   `yaml:"radios"`
	Position   PositionConfig `yaml:"position"`
	Vehicle    VehicleConfig  `yaml:"vehicle"`
	Simulation uwbsim.Config  `yaml:"simulation"`
}

// RangingConfig mirrors ranging.Config
type RangingConfig struct {
	FailureThreshold int     `yaml:"failure_threshold"`
	WindowSize       int     `yaml:"window_size"`
	MinDistance      float64 `yaml:"min_distance"`
	MaxDistance      float64 `yaml:"max_distance"`
	CalibrationB     float64 `yaml:"calibration_b"`
	CalibrationC     float64 `yaml:"calibration_c"`
	VerifyFrames     bool    `yaml:"verify_frames"`
	ProgressInterval int     `yaml:"progress_interval"`
}

// RadioConfig describes how one DW1000 is attached
type RadioConfig struct {
	Bus            string        `yaml:"bus"`    // spi or ch341
	Device         string        `yaml:"device"` // spidev path or CH341 selector
	SpeedHz        int64         `yaml:"speed_hz,omitempty"`
	ResetPin       string        `yaml:"reset_pin,omitempty"`
	IRQPin         string        `yaml:"irq_pin,omitempty"`
	AntennaDelay   uint16        `yaml:"antenna_delay"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
}

// RadiosConfig binds a radio to every role
type RadiosConfig struct {
	Tag     RadioConfig `yaml:"tag"`
	AnchorB RadioConfig `yaml:"anchor_b"`
	AnchorC RadioConfig `yaml:"anchor_c"`
}

// Get returns the radio wiring for a role
func (r *RadiosConfig) Get(id radio.Identity) *RadioConfig {
	switch id {
	case radio.AnchorB:
		return &r.AnchorB
	case radio.AnchorC:
		return &r.AnchorC
	default:
		return &r.Tag
	}
}

// PositionConfig describes the anchor geometry
type PositionConfig struct {
	Baseline float64 `yaml:"baseline"` // meters from AnchorB to AnchorC
}

// VehicleConfig selects the steering transports. An empty broker or port
// disables that transport.
type VehicleConfig struct {
	Steer  bool                 `yaml:"steer"`
	MQTT   vehicle.MQTTConfig   `yaml:"mqtt"`
	Serial vehicle.SerialConfig `yaml:"serial"`
}

// Default returns the configuration of the reference rig: three radios on
// the first three CH341 bridges and anchors 1.2 m apart
func Default() *Config {
	rc := ranging.DefaultConfig()
	c := &Config{
		Ranging: RangingConfig{
			FailureThreshold: rc.FailureThreshold,
			WindowSize:       rc.WindowSize,
			MinDistance:      rc.MinDistance,
			MaxDistance:      rc.MaxDistance,
			CalibrationB:     rc.CalibrationB,
			CalibrationC:     rc.CalibrationC,
			VerifyFrames:     rc.VerifyFrames,
			ProgressInterval: rc.ProgressInterval,
		},
		Position: PositionConfig{Baseline: 1.2},
		Vehicle: VehicleConfig{
			MQTT:   vehicle.MQTTConfig{ClientID: "gouwb", Topic: vehicle.DefaultTopic},
			Serial: vehicle.SerialConfig{BaudRate: 115200},
		},
		Simulation: uwbsim.DefaultConfig(),
	}
	for i, id := range radio.Identities {
		*c.Radios.Get(id) = RadioConfig{
			Bus:            BusCH341,
			Device:         fmt.Sprintf("#%d", i),
			AntennaDelay:   dw1000.DefaultAntennaDelay,
			ReceiveTimeout: dw1000.DefaultReceiveTimeout,
		}
	}
	return c
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := c.RangingConfig().Validate(); err != nil {
		return err
	}
	for _, id := range radio.Identities {
		r := c.Radios.Get(id)
		switch r.Bus {
		case BusSPI, BusCH341:
		default:
			return fmt.Errorf("%w: %s: unknown bus %q", ErrInvalidConfig, id, r.Bus)
		}
		if r.ReceiveTimeout < 0 {
			return fmt.Errorf("%w: %s: negative receive timeout", ErrInvalidConfig, id)
		}
	}
	if c.Position.Baseline <= 0 {
		return fmt.Errorf("%w: baseline must be positive", ErrInvalidConfig)
	}
	if c.Vehicle.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt qos %d", ErrInvalidConfig, c.Vehicle.MQTT.QoS)
	}
	if p := c.Simulation.DropProbability; p < 0 || p > 1 {
		return fmt.Errorf("%w: drop probability %.2f", ErrInvalidConfig, p)
	}
	return nil
}

// RangingConfig converts the ranging section for the ranging loop
func (c *Config) RangingConfig() *ranging.Config {
	rc := ranging.DefaultConfig()
	rc.FailureThreshold = c.Ranging.FailureThreshold
	rc.WindowSize = c.Ranging.WindowSize
	rc.MinDistance = c.Ranging.MinDistance
	rc.MaxDistance = c.Ranging.MaxDistance
	rc.CalibrationB = c.Ranging.CalibrationB
	rc.CalibrationC = c.Ranging.CalibrationC
	rc.VerifyFrames = c.Ranging.VerifyFrames
	rc.ProgressInterval = c.Ranging.ProgressInterval
	return rc
}

// DeviceConfig builds the dw1000 settings for one role
func (r *RadioConfig) DeviceConfig(id radio.Identity) dw1000.Config {
	return dw1000.Config{
		Name:           id.String(),
		ReceiveTimeout: r.ReceiveTimeout,
		AntennaDelay:   r.AntennaDelay,
	}
}

package ranging

import (
	"fmt"
	"io"
	"log/slog"
)

// Config holds the deployment-specific ranging parameters
type Config struct {
	// Recovery
	FailureThreshold int // consecutive failures tolerated before a reset

	// Smoothing
	WindowSize int

	// Plausibility interval, meters, exclusive
	MinDistance float64
	MaxDistance float64

	// Antenna delay offsets subtracted from each link, meters
	CalibrationB float64
	CalibrationC float64

	// VerifyFrames rejects receptions whose blink tag id is not the sender's
	VerifyFrames bool

	// Output
	ProgressInterval int // accepted rounds between progress writes, 0 disables
	StopAfter        int // stop after this many accepted rounds, 0 runs forever

	// Optional sinks, not part of the deployment file
	Logger   *slog.Logger `yaml:"-"`
	Progress io.Writer    `yaml:"-"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: DefaultFailureThreshold,
		WindowSize:       DefaultWindowSize,
		MinDistance:      DefaultMinDistance,
		MaxDistance:      DefaultMaxDistance,
		CalibrationB:     DefaultCalibrationB,
		CalibrationC:     DefaultCalibrationC,
		VerifyFrames:     true,
		ProgressInterval: DefaultProgressInterval,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("%w: failure threshold must be at least 1", ErrInvalidConfig)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window size must be at least 1", ErrInvalidConfig)
	}
	if c.MinDistance >= c.MaxDistance {
		return fmt.Errorf("%w: distance interval (%.3f, %.3f) is empty", ErrInvalidConfig, c.MinDistance, c.MaxDistance)
	}
	if c.ProgressInterval < 0 || c.StopAfter < 0 {
		return fmt.Errorf("%w: negative counter", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

package ranging

// Default ranging parameters for the two-anchor rig
const (
	// DefaultFailureThreshold is the failure streak tolerated before the
	// radios are reset and reinitialised.
	DefaultFailureThreshold = 10

	// DefaultWindowSize is the number of accepted distances averaged per link
	DefaultWindowSize = 5

	// Plausible distance interval (meters, exclusive at both ends)
	DefaultMinDistance = -0.05
	DefaultMaxDistance = 7.0

	// Antenna delay offsets (meters) measured for the deployed radios
	DefaultCalibrationB = 154.7
	DefaultCalibrationC = 154.3

	// DefaultProgressInterval is the number of accepted rounds between
	// progress counter writes
	DefaultProgressInterval = 100
)

// Steps in one ranging round
const numSteps = 4

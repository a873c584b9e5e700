package frame

import "errors"

var (
	// ErrShortFrame indicates fewer bytes than the fixed layout needs
	ErrShortFrame = errors.New("frame too short")

	// ErrFrameControl indicates an unexpected frame control value
	ErrFrameControl = errors.New("unexpected frame control")
)

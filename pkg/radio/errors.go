package radio

import "errors"

var (
	// ErrNoFrame indicates the receive window closed without a good frame
	ErrNoFrame = errors.New("no frame received")

	// ErrHardwareFault indicates a radio stopped responding to its bus
	ErrHardwareFault = errors.New("radio hardware fault")
)

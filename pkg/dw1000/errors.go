package dw1000

import "errors"

var (
	ErrDeviceID    = errors.New("unexpected DW1000 device id")
	ErrTxTimeout   = errors.New("timeout waiting for transmit done")
	ErrPinNotFound = errors.New("gpio pin not found")
)

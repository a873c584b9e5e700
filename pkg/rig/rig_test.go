package rig

import (
	"errors"
	"testing"

	"github.com/herlein/gouwb/pkg/config"
)

func TestOpenRejectsUnknownBus(t *testing.T) {
	cfg := config.Default()
	cfg.Radios.Tag.Bus = "i2c"

	r, err := Open(cfg, nil)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("Open() error = %v, want ErrInvalidConfig", err)
	}
	if r != nil {
		t.Errorf("Open() returned a rig with an error")
	}
}

func TestCloseEmptyRig(t *testing.T) {
	r := &Rig{}
	if err := r.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

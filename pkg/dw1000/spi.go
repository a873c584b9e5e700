package dw1000

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSPIHz keeps the bus below the 3 MHz limit that applies until the
// PLL has locked
const DefaultSPIHz = 2000000

// SPIBus is a host SPI port (e.g. /dev/spidev0.0) opened through periph.io
type SPIBus struct {
	port spi.PortCloser
	conn spi.Conn
	path string
}

// OpenSPI opens a host SPI port in mode 0. An empty path selects the first
// registered port.
func OpenSPI(path string, hz int64) (*SPIBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}

	if hz == 0 {
		hz = DefaultSPIHz
	}

	p, err := spireg.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", path, err)
	}

	conn, err := p.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create SPI connection: %w", err)
	}

	return &SPIBus{port: p, conn: conn, path: path}, nil
}

func (b *SPIBus) Tx(w, r []byte) error {
	return b.conn.Tx(w, r)
}

func (b *SPIBus) Close() error {
	return b.port.Close()
}

func (b *SPIBus) String() string {
	return fmt.Sprintf("spi %s", b.path)
}

// Pin looks up a GPIO by name ("GPIO17", "17"). An empty name returns nil.
func Pin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return p, nil
}

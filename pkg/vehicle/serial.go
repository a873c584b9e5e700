package vehicle

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.bug.st/serial"
)

// MaxFrameSize bounds a length-prefixed frame on the serial link
const MaxFrameSize = 4096

// SerialConfig selects the vehicle controller port
type SerialConfig struct {
	Port     string `yaml:"port"` // e.g. /dev/ttyUSB0
	BaudRate int    `yaml:"baud_rate"`
}

// WriteFrame writes msg as a 4-byte big-endian length followed by msgpack
func WriteFrame(w io.Writer, msg Message) error {
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal msgpack frame: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(data))
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame
func ReadFrame(r io.Reader) (Message, error) {
	var msg Message

	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return msg, fmt.Errorf("failed to read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lengthBuf[:])
	if n > MaxFrameSize {
		return msg, fmt.Errorf("frame too large: %d bytes", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return msg, fmt.Errorf("failed to read frame: %w", err)
	}
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to unmarshal msgpack frame: %w", err)
	}
	return msg, nil
}

// SerialDispatcher writes steering frames to a vehicle controller
type SerialDispatcher struct {
	mu   sync.Mutex
	port io.WriteCloser
	path string
	log  *slog.Logger
}

// OpenSerial opens the controller port at 8N1
func OpenSerial(cfg SerialConfig, log *slog.Logger) (*SerialDispatcher, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if log == nil {
		log = slog.Default()
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set timeout: %w", err)
	}

	log.Info("serial link opened", "port", cfg.Port, "baud", cfg.BaudRate)
	return &SerialDispatcher{port: port, path: cfg.Port, log: log}, nil
}

// NewSerialDispatcher writes frames to an already open stream
func NewSerialDispatcher(w io.WriteCloser, log *slog.Logger) *SerialDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &SerialDispatcher{port: w, log: log}
}

func (s *SerialDispatcher) Dispatch(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return fmt.Errorf("serial link closed")
	}
	return WriteFrame(s.port, msg)
}

func (s *SerialDispatcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

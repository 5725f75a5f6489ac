package device

import (
	"bufio"
	"bytes"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

const (
	DefaultBaudRate    = 9600
	defaultReadTimeout = 2 * time.Second
)

// SerialConfig selects the tty and line speed of the oven board.
type SerialConfig struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// Serial is a Transport over a tty.
type Serial struct {
	name string
	port *serial.Port
	r    *bufio.Reader
}

// OpenSerial opens the port. Failing here is fatal for the controller.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("open serial: device name is empty")
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s at %d baud: %w", cfg.Name, cfg.Baud, err)
	}
	return &Serial{name: cfg.Name, port: port, r: bufio.NewReader(port)}, nil
}

func (s *Serial) Write(b []byte) (int, error) {
	return s.port.Write(b)
}

// ReadLine reads up to the next '\n'. A read timeout surfaces as an error.
func (s *Serial) ReadLine() ([]byte, error) {
	line, err := s.r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.name, err)
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

// ResetInput drops both the kernel buffers and anything already buffered
// locally, so the next line read is a fresh one.
func (s *Serial) ResetInput() error {
	s.r.Reset(s.port)
	return s.port.Flush()
}

// ResetOutput discards unsent output. tarm/serial flushes both directions.
func (s *Serial) ResetOutput() error {
	return s.port.Flush()
}

// Drain is a no-op: writes go straight to the tty and close waits for the
// kernel to transmit them.
func (s *Serial) Drain() error { return nil }

func (s *Serial) Close() error {
	return s.port.Close()
}

// Package device is the boundary to the oven controller board: a line-oriented
// channel that accepts single-byte heater commands and answers with JSON status
// records.
package device

import (
	"errors"
	"fmt"
	"io"
)

// Command is a single-byte heater command.
type Command byte

const (
	CommandOn  Command = 'e' // 0x65
	CommandOff Command = 'd' // 0x64
)

func (c Command) String() string {
	switch c {
	case CommandOn:
		return "on"
	case CommandOff:
		return "off"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(c))
	}
}

// Transport is the raw channel to the board.
type Transport interface {
	io.Writer
	// ReadLine returns the next newline-terminated line without the terminator.
	ReadLine() ([]byte, error)
	// ResetInput discards buffered, unread input.
	ResetInput() error
	// ResetOutput discards pending, unsent output.
	ResetOutput() error
	// Drain blocks until written data has been handed to the device.
	Drain() error
	Close() error
}

// Port speaks the command/status protocol over a Transport.
type Port struct {
	t      Transport
	closed bool
}

func NewPort(t Transport) *Port {
	return &Port{t: t}
}

// Send clears pending output and writes one command byte.
func (p *Port) Send(cmd Command) error {
	if p.closed {
		return ErrClosed
	}
	if err := p.t.ResetOutput(); err != nil {
		return fmt.Errorf("reset output: %w", err)
	}
	if _, err := p.t.Write([]byte{byte(cmd)}); err != nil {
		return fmt.Errorf("write %s command: %w", cmd, err)
	}
	return nil
}

// Receive discards stale input and decodes the next status line. Any read or
// decode failure wraps ErrNoSample.
func (p *Port) Receive() (Status, error) {
	if p.closed {
		return Status{}, ErrClosed
	}
	if err := p.t.ResetInput(); err != nil {
		return Status{}, fmt.Errorf("%w: reset input: %v", ErrNoSample, err)
	}
	line, err := p.t.ReadLine()
	if err != nil {
		return Status{}, fmt.Errorf("%w: read: %v", ErrNoSample, err)
	}
	return ParseStatus(line)
}

// Close drains and closes the transport. Closing twice is a no-op.
func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(p.t.Drain(), p.t.Close())
}

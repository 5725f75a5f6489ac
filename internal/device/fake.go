package device

import (
	"errors"
	"io"
)

// FakeTransport is a scripted Transport for tests. Each ReadLine consumes the
// next entry of Lines; an entry equal to FakeReadError fails the read instead.
type FakeTransport struct {
	Lines []string

	// Written holds every byte written, in order.
	Written []byte

	// WriteError, if set, is returned by Write.
	WriteError error

	InputResets  int
	OutputResets int
	Drained      bool
	Closed       bool

	index int
}

// FakeReadError in Lines makes ReadLine return an error.
const FakeReadError = "\x00read-error"

var errFakeRead = errors.New("fake read error")

func NewFakeTransport(lines ...string) *FakeTransport {
	return &FakeTransport{Lines: lines}
}

// Push appends more scripted lines.
func (f *FakeTransport) Push(lines ...string) {
	f.Lines = append(f.Lines, lines...)
}

func (f *FakeTransport) Write(b []byte) (int, error) {
	if f.WriteError != nil {
		return 0, f.WriteError
	}
	f.Written = append(f.Written, b...)
	return len(b), nil
}

// ReadLine returns io.EOF once the script is exhausted.
func (f *FakeTransport) ReadLine() ([]byte, error) {
	if f.index >= len(f.Lines) {
		return nil, io.EOF
	}
	line := f.Lines[f.index]
	f.index++
	if line == FakeReadError {
		return nil, errFakeRead
	}
	return []byte(line), nil
}

func (f *FakeTransport) ResetInput() error {
	f.InputResets++
	return nil
}

func (f *FakeTransport) ResetOutput() error {
	f.OutputResets++
	return nil
}

func (f *FakeTransport) Drain() error {
	f.Drained = true
	return nil
}

func (f *FakeTransport) Close() error {
	f.Closed = true
	return nil
}

// LastCommand returns the most recently written command byte.
func (f *FakeTransport) LastCommand() (Command, bool) {
	if len(f.Written) == 0 {
		return 0, false
	}
	return Command(f.Written[len(f.Written)-1]), true
}

// Remaining is the number of unread scripted lines.
func (f *FakeTransport) Remaining() int {
	return len(f.Lines) - f.index
}

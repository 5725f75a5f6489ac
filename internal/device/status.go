package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrNoSample marks a transient telemetry miss.
	ErrNoSample = errors.New("no status sample")
	ErrClosed   = errors.New("device port closed")
)

// Status is one decoded status record.
type Status struct {
	Temperature float64 // t, °C
	Fault       int     // f, 0 = ok
	OvenOn      bool    // s, relay state reported by the board
	Wait        float64 // w, board-reported cycle metric
}

// wireStatus mirrors the record on the wire; pointers detect missing fields.
type wireStatus struct {
	T *float64 `json:"t"`
	F *int     `json:"f"`
	S *int     `json:"s"`
	W *float64 `json:"w"`
}

// ParseStatus decodes a status line such as {"t":24.5,"f":0,"s":1,"w":0.25}.
func ParseStatus(line []byte) (Status, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Status{}, fmt.Errorf("%w: empty line", ErrNoSample)
	}
	if !utf8.Valid(line) {
		return Status{}, fmt.Errorf("%w: invalid utf-8", ErrNoSample)
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()

	var w wireStatus
	if err := dec.Decode(&w); err != nil {
		return Status{}, fmt.Errorf("%w: decode %q: %v", ErrNoSample, line, err)
	}
	if dec.More() {
		return Status{}, fmt.Errorf("%w: trailing data in %q", ErrNoSample, line)
	}
	if w.T == nil || w.F == nil || w.S == nil || w.W == nil {
		return Status{}, fmt.Errorf("%w: incomplete record %q", ErrNoSample, line)
	}

	return Status{
		Temperature: *w.T,
		Fault:       *w.F,
		OvenOn:      *w.S != 0,
		Wait:        *w.W,
	}, nil
}

// FormatStatus encodes s the way the board does. Used by the simulator.
func FormatStatus(s Status) []byte {
	on := 0
	if s.OvenOn {
		on = 1
	}
	b, _ := json.Marshal(map[string]any{
		"t": s.Temperature,
		"f": s.Fault,
		"s": on,
		"w": s.Wait,
	})
	return b
}

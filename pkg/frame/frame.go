// Package frame implements the wire frame carried by every jack: one kind
// byte, a JSON array address, a NUL separator, then the payload.
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"ejswitch/pkg/address"
)

// Frame kinds. Anything else is unrecognized and never dispatched.
const (
	KindRouted byte = 'r' // needs local delivery
	KindSent   byte = 's' // already delivered at the transport boundary
)

const sep byte = 0x00

// Frame is a parsed message unit. Frames are built per received message and
// discarded after dispatch; the switch never persists them.
type Frame struct {
	Kind    byte
	Addr    address.Address
	Payload []byte
}

// New builds a frame with a canonicalized address.
func New(kind byte, addr address.Address, payload []byte) *Frame {
	return &Frame{Kind: kind, Addr: addr.Canonical(), Payload: payload}
}

// Parse decodes raw wire bytes into a Frame.
func Parse(raw []byte) (*Frame, error) {
	if len(raw) < 2 {
		return nil, errors.New("frame too short")
	}
	// Scan past the kind byte so a leading NUL cannot pose as the separator.
	i := bytes.IndexByte(raw[1:], sep)
	if i < 0 {
		return nil, errors.New("frame missing address separator")
	}
	i++
	addr, err := address.FromJSON(raw[1:i])
	if err != nil {
		return nil, fmt.Errorf("frame address: %w", err)
	}
	payload := append([]byte(nil), raw[i+1:]...)
	return &Frame{Kind: raw[0], Addr: addr, Payload: payload}, nil
}

// Encode renders the frame back to wire bytes.
func (f *Frame) Encode() ([]byte, error) {
	ab, err := json.Marshal([]any(f.Addr.Canonical()))
	if err != nil {
		return nil, fmt.Errorf("encode frame address: %w", err)
	}
	out := make([]byte, 0, 1+len(ab)+1+len(f.Payload))
	out = append(out, f.Kind)
	out = append(out, ab...)
	out = append(out, sep)
	out = append(out, f.Payload...)
	return out, nil
}

// String renders the frame for the activity log.
func (f *Frame) String() string {
	b, err := f.Encode()
	if err != nil {
		return fmt.Sprintf("frame[%c %s]", f.Kind, f.Addr)
	}
	return string(b)
}

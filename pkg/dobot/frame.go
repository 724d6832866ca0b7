// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"fmt"
	"time"
)

// Frame is one decoded protocol frame (magic, length and checksum stripped)
type Frame struct {
	ID      uint8
	Control Control
	Payload []byte
}

// IsWrite returns true if the write (set) bit is set
func (f Frame) IsWrite() bool {
	return f.Control&ControlWrite != 0
}

// IsQueued returns true if the queued bit is set
func (f Frame) IsQueued() bool {
	return f.Control&ControlQueued != 0
}

// Key returns the registry key (id + direction) of the frame
func (f Frame) Key() Key {
	return Key{ID: f.ID, Write: f.IsWrite()}
}

// Length returns the value of the length byte for this frame
func (f Frame) Length() int {
	return MinLength + len(f.Payload)
}

// Checksum returns the checksum byte for this frame
func (f Frame) Checksum() uint8 {
	return Checksum(f.ID, f.Control, f.Payload)
}

// Key identifies a command on the wire. The protocol reuses each id for a
// getter (read) and a setter (write), so the id alone is not unique.
type Key struct {
	ID    uint8
	Write bool
}

func (k Key) String() string {
	if k.Write {
		return fmt.Sprintf("id=%d/w", k.ID)
	}
	return fmt.Sprintf("id=%d/r", k.ID)
}

// Checksum computes the frame checksum: the two's complement of the byte sum
// of id, control and payload, so that the sum including the checksum is 0 mod 256.
func Checksum(id uint8, control Control, payload []byte) uint8 {
	sum := uint32(id) + uint32(control)
	for _, b := range payload {
		sum += uint32(b)
	}
	return uint8((0x100 - sum%0x100) % 0x100)
}

// TimedFrame is a frame captured from a stream together with its decode time
type TimedFrame struct {
	Frame
	Timestamp time.Time
}

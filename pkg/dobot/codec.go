// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"errors"
	"fmt"
	"io"
)

// BuildFrame creates a complete wire-formatted frame.
// Layout: [0xAA, 0xAA, length, id, control, payload..., checksum]
func BuildFrame(id uint8, control Control, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload too large: %d bytes (max %d)", ErrSchemaMismatch, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, HeaderSize+MinLength+len(payload)+1)
	frame = append(frame, MagicByte, MagicByte, uint8(MinLength+len(payload)), id, uint8(control))
	frame = append(frame, payload...)
	frame = append(frame, Checksum(id, control, payload))

	return frame, nil
}

// EncodeFrame encodes a Frame to wire format.
func EncodeFrame(f Frame) ([]byte, error) {
	return BuildFrame(f.ID, f.Control, f.Payload)
}

// MustBuildFrame is BuildFrame for callers with a payload known to fit.
// Panics on encoding error (use BuildFrame for error handling).
func MustBuildFrame(id uint8, control Control, payload []byte) []byte {
	data, err := BuildFrame(id, control, payload)
	if err != nil {
		panic(fmt.Sprintf("dobot: encode error: %v", err))
	}
	return data
}

// ReadFrame reads exactly one frame from r.
//
// The frame is read in two stages: the fixed 3-byte header, then the
// length-driven body. Every read is exact-count; a short read is never
// returned as a frame. A checksum mismatch discards the frame.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:2]); err != nil {
		return Frame{}, readError(err, "magic")
	}
	if header[0] != MagicByte || header[1] != MagicByte {
		return Frame{}, fmt.Errorf("%w: bad magic 0x%02X 0x%02X", ErrFraming, header[0], header[1])
	}

	if _, err := io.ReadFull(r, header[2:3]); err != nil {
		return Frame{}, readError(err, "length")
	}
	length := int(header[2])
	if length < MinLength {
		return Frame{}, fmt.Errorf("%w: zero length (%d)", ErrFraming, length)
	}

	// id, control, payload, checksum
	body := make([]byte, length+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, readError(err, "body")
	}

	return verifyBody(body)
}

// ParseFrame parses a single complete frame held in raw.
// Trailing or missing bytes are framing errors.
func ParseFrame(raw []byte) (Frame, error) {
	if len(raw) < HeaderSize+MinLength+1 {
		return Frame{}, fmt.Errorf("%w: short frame (%d bytes)", ErrFraming, len(raw))
	}
	if raw[0] != MagicByte || raw[1] != MagicByte {
		return Frame{}, fmt.Errorf("%w: bad magic 0x%02X 0x%02X", ErrFraming, raw[0], raw[1])
	}
	length := int(raw[2])
	if length < MinLength {
		return Frame{}, fmt.Errorf("%w: zero length (%d)", ErrFraming, length)
	}
	if want := HeaderSize + length + 1; len(raw) != want {
		return Frame{}, fmt.Errorf("%w: length byte says %d bytes, got %d", ErrFraming, want, len(raw))
	}
	return verifyBody(raw[HeaderSize:])
}

// verifyBody checks the checksum of [id, control, payload..., checksum]
func verifyBody(body []byte) (Frame, error) {
	n := len(body)
	id := body[0]
	control := Control(body[1])
	payload := body[2 : n-1]
	got := body[n-1]

	if want := Checksum(id, control, payload); got != want {
		return Frame{}, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, want, got)
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return Frame{ID: id, Control: control, Payload: out}, nil
}

// readError classifies an error from an exact-count read
func readError(err error, stage string) error {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrTransport):
		return err
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: truncated frame at %s: %w", ErrFraming, stage, err)
	default:
		return fmt.Errorf("%w: reading %s: %w", ErrTransport, stage, err)
	}
}

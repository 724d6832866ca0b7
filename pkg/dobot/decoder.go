// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"fmt"
	"time"
)

// Decoder is a byte-at-a-time frame decoder for passive monitoring.
//
// Unlike ReadFrame it never blocks and recovers from garbage on its own:
// after any error it goes back to hunting for the magic bytes. The
// transaction engine does not use it.
type Decoder struct {
	state     int
	length    int
	body      []byte
	rawBuffer []byte // raw bytes of the frame being decoded, magic included
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		body:      make([]byte, 0, 0xFF+1),
		rawBuffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset returns the decoder to the idle state
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.length = 0
	d.body = d.body[:0]
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the bytes accumulated for the current frame
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte feeds one byte to the decoder.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error (ErrFraming or ErrChecksum) if decoding fails.
func (d *Decoder) DecodeByte(b byte) (*TimedFrame, error) {
	switch d.state {
	case stateIdle:
		if b == MagicByte {
			d.rawBuffer = append(d.rawBuffer[:0], b)
			d.state = stateMagic2
		}
		return nil, nil

	case stateMagic2:
		if b != MagicByte {
			d.Reset()
			return nil, fmt.Errorf("%w: bad magic 0x%02X 0x%02X", ErrFraming, MagicByte, b)
		}
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength
		return nil, nil

	case stateLength:
		// A third 0xAA is read as the length; 170 is a legal length, so
		// the frame decides once its checksum is known.
		if int(b) < MinLength {
			d.Reset()
			return nil, fmt.Errorf("%w: zero length (%d)", ErrFraming, b)
		}
		d.rawBuffer = append(d.rawBuffer, b)
		d.length = int(b)
		d.body = d.body[:0]
		d.state = stateBody
		return nil, nil

	case stateBody:
		d.rawBuffer = append(d.rawBuffer, b)
		d.body = append(d.body, b)
		if len(d.body) < d.length+1 {
			return nil, nil
		}

		frame, err := verifyBody(d.body)
		d.Reset()
		if err != nil {
			return nil, err
		}
		return &TimedFrame{Frame: frame, Timestamp: time.Now()}, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("%w: invalid decoder state %d", ErrFraming, d.state)
	}
}

// Feed decodes a chunk of bytes and returns every completed frame along
// with any errors met on the way.
func (d *Decoder) Feed(data []byte) ([]*TimedFrame, []error) {
	var frames []*TimedFrame
	var errs []error
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		id       uint8
		control  Control
		payload  []byte
		expected uint8
	}{
		{"get device id", CmdDeviceID, 0, nil, 0xFB},
		{"set io do queued", CmdIODO, ControlWrite | ControlQueued, []byte{1, 1}, 0x78},
		{"zero sum", 0, 0, nil, 0x00},
		{"wraps", 0xFF, 0x01, nil, 0x00},
		{"payload only", 0, 0, []byte{0x10, 0x20}, 0xD0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Checksum(tt.id, tt.control, tt.payload)
			if got != tt.expected {
				t.Errorf("Checksum() = 0x%02X, want 0x%02X", got, tt.expected)
			}
		})
	}
}

func TestChecksum_SumIsZero(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0xFF}
	cs := Checksum(0x54, 0x03, payload)

	sum := uint32(0x54) + 0x03 + uint32(cs)
	for _, b := range payload {
		sum += uint32(b)
	}
	if sum%256 != 0 {
		t.Errorf("sum including checksum = %d mod 256, want 0", sum%256)
	}
}

// ============================================================
// BuildFrame Tests
// ============================================================

func TestBuildFrame_GetDeviceID(t *testing.T) {
	got, err := BuildFrame(CmdDeviceID, 0, nil)
	if err != nil {
		t.Fatalf("BuildFrame() error = %v", err)
	}
	want := []byte{0xAA, 0xAA, 0x02, 0x05, 0x00, 0xFB}
	if !bytes.Equal(got, want) {
		t.Errorf("BuildFrame() = % X, want % X", got, want)
	}
}

func TestBuildFrame_SetIODOQueued(t *testing.T) {
	got, err := BuildFrame(CmdIODO, ControlWrite|ControlQueued, []byte{0x01, 0x01})
	if err != nil {
		t.Fatalf("BuildFrame() error = %v", err)
	}
	want := []byte{0xAA, 0xAA, 0x04, 0x83, 0x03, 0x01, 0x01, 0x78}
	if !bytes.Equal(got, want) {
		t.Errorf("BuildFrame() = % X, want % X", got, want)
	}
}

func TestBuildFrame_Length(t *testing.T) {
	for _, n := range []int{0, 1, 4, 32, MaxPayloadSize} {
		payload := bytes.Repeat([]byte{0x5A}, n)
		frame, err := BuildFrame(0x10, 0, payload)
		if err != nil {
			t.Fatalf("BuildFrame(%d bytes) error = %v", n, err)
		}
		if int(frame[2]) != n+2 {
			t.Errorf("length byte = %d, want %d", frame[2], n+2)
		}
		if len(frame) != n+6 {
			t.Errorf("frame size = %d, want %d", len(frame), n+6)
		}
	}
}

func TestBuildFrame_PayloadTooLarge(t *testing.T) {
	_, err := BuildFrame(0x10, 0, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("BuildFrame() error = %v, want ErrSchemaMismatch", err)
	}
}

func TestMustBuildFrame_Panic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustBuildFrame() should panic on oversized payload")
		}
	}()
	MustBuildFrame(0x10, 0, make([]byte, MaxPayloadSize+1))
}

func TestEncodeFrame(t *testing.T) {
	f := Frame{ID: CmdPose, Control: 0, Payload: nil}
	got, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	if !bytes.Equal(got, MustBuildFrame(CmdPose, 0, nil)) {
		t.Errorf("EncodeFrame() = % X", got)
	}
}

// ============================================================
// ReadFrame / ParseFrame Tests
// ============================================================

func TestReadFrame_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		id      uint8
		control Control
		payload []byte
	}{
		{"empty", CmdDeviceID, 0, nil},
		{"write", CmdIODO, ControlWrite, []byte{1, 0}},
		{"queued", CmdPTPCmd, ControlWrite | ControlQueued, bytes.Repeat([]byte{0x42}, 17)},
		{"magic in payload", CmdDeviceName, ControlWrite, []byte{0xAA, 0xAA, 0xAA}},
		{"max", 0xFF, 0x03, bytes.Repeat([]byte{0xFF}, MaxPayloadSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := MustBuildFrame(tt.id, tt.control, tt.payload)

			got, err := ReadFrame(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("ReadFrame() error = %v", err)
			}
			if got.ID != tt.id || got.Control != tt.control || !bytes.Equal(got.Payload, tt.payload) {
				t.Errorf("ReadFrame() = %+v, want id=%d control=%d payload=% X", got, tt.id, tt.control, tt.payload)
			}

			parsed, err := ParseFrame(raw)
			if err != nil {
				t.Fatalf("ParseFrame() error = %v", err)
			}
			if parsed.ID != tt.id || !bytes.Equal(parsed.Payload, tt.payload) {
				t.Errorf("ParseFrame() = %+v", parsed)
			}
		})
	}
}

func TestReadFrame_ConsumesExactlyOneFrame(t *testing.T) {
	first := MustBuildFrame(CmdPose, 0, []byte{1, 2, 3})
	second := MustBuildFrame(CmdDeviceTime, 0, []byte{4, 5, 6, 7})
	r := bytes.NewReader(append(append([]byte{}, first...), second...))

	f1, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("first ReadFrame() error = %v", err)
	}
	f2, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("second ReadFrame() error = %v", err)
	}
	if f1.ID != CmdPose || f2.ID != CmdDeviceTime {
		t.Errorf("ids = %d, %d, want %d, %d", f1.ID, f2.ID, CmdPose, CmdDeviceTime)
	}
	if r.Len() != 0 {
		t.Errorf("%d bytes left unread", r.Len())
	}
}

func TestReadFrame_Errors(t *testing.T) {
	valid := MustBuildFrame(CmdIODO, ControlWrite, []byte{1, 1})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"bad first magic", []byte{0x55, 0xAA, 0x02, 0x05, 0x00, 0xFB}, ErrFraming},
		{"bad second magic", []byte{0xAA, 0x00, 0x02, 0x05, 0x00, 0xFB}, ErrFraming},
		{"zero length", []byte{0xAA, 0xAA, 0x00}, ErrFraming},
		{"length one", []byte{0xAA, 0xAA, 0x01, 0x05, 0xFB}, ErrFraming},
		{"truncated body", valid[:len(valid)-2], ErrFraming},
		{"truncated header", valid[:1], ErrFraming},
		{"bad checksum", append(append([]byte{}, valid[:len(valid)-1]...), valid[len(valid)-1]^0x01), ErrChecksum},
		{"empty stream", nil, ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadFrame() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadFrame_TruncatedWrapsUnexpectedEOF(t *testing.T) {
	raw := MustBuildFrame(CmdPose, 0, make([]byte, 8))
	_, err := ReadFrame(bytes.NewReader(raw[:6]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadFrame() error = %v, want io.ErrUnexpectedEOF in chain", err)
	}
}

func TestParseFrame_Errors(t *testing.T) {
	valid := MustBuildFrame(CmdDeviceName, 0, []byte("abc"))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too short", valid[:4], ErrFraming},
		{"trailing byte", append(append([]byte{}, valid...), 0x00), ErrFraming},
		{"missing byte", valid[:len(valid)-1], ErrFraming},
		{"bad magic", append([]byte{0xAB}, valid[1:]...), ErrFraming},
		{"bad checksum", append(append([]byte{}, valid[:len(valid)-1]...), 0x00), ErrChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseFrame() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// Every single-bit flip in id, control, payload or checksum is detected.
func TestParseFrame_SingleBitFlip(t *testing.T) {
	raw := MustBuildFrame(CmdPTPCmd, 0x03, []byte{0x01, 0x00, 0x00, 0x48, 0x43, 0x00, 0x00, 0x00, 0x00})

	for i := HeaderSize; i < len(raw); i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte{}, raw...)
			corrupt[i] ^= 1 << bit
			if _, err := ParseFrame(corrupt); !errors.Is(err, ErrChecksum) {
				t.Errorf("flip byte %d bit %d: error = %v, want ErrChecksum", i, bit, err)
			}
		}
	}
}

func TestFrame_Accessors(t *testing.T) {
	f := Frame{ID: CmdIODO, Control: ControlWrite | ControlQueued, Payload: []byte{1, 1}}

	if !f.IsWrite() || !f.IsQueued() {
		t.Errorf("IsWrite() = %v, IsQueued() = %v, want true, true", f.IsWrite(), f.IsQueued())
	}
	if f.Key() != (Key{ID: CmdIODO, Write: true}) {
		t.Errorf("Key() = %v", f.Key())
	}
	if f.Length() != 4 {
		t.Errorf("Length() = %d, want 4", f.Length())
	}
	if f.Checksum() != 0x78 {
		t.Errorf("Checksum() = 0x%02X, want 0x78", f.Checksum())
	}
	if got := f.Key().String(); got != "id=131/w" {
		t.Errorf("Key().String() = %q", got)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"reflect"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomValue returns a value of the Go type matching p
func randomValue(rng *rand.Rand, p Param) any {
	switch p.Kind {
	case KindBool:
		return rng.Intn(2) == 1
	case KindU8:
		return uint8(rng.Intn(256))
	case KindI8:
		return int8(rng.Intn(256) - 128)
	case KindU16:
		return uint16(rng.Intn(1 << 16))
	case KindI16:
		return int16(rng.Intn(1<<16) - 1<<15)
	case KindU32:
		return rng.Uint32()
	case KindI32:
		return int32(rng.Uint32())
	case KindU64:
		return rng.Uint64()
	case KindF32:
		return float32(rng.NormFloat64() * 300)
	case KindString:
		n := p.Size
		if n == 0 {
			n = rng.Intn(32)
		} else {
			n = rng.Intn(n + 1)
		}
		b := make([]byte, n)
		for i := range b {
			b[i] = byte('a' + rng.Intn(26))
		}
		return string(b)
	default:
		n := p.Size
		if n == 0 {
			n = rng.Intn(32)
		}
		b := make([]byte, n)
		rng.Read(b)
		return b
	}
}

// ============================================================
// Frame Fuzz Tests
// ============================================================

func TestFuzz_FrameRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		id := uint8(rng.Intn(256))
		control := Control(rng.Intn(4))
		payload := make([]byte, rng.Intn(MaxPayloadSize+1))
		rng.Read(payload)

		raw := MustBuildFrame(id, control, payload)
		f, err := ReadFrame(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("round %d: ReadFrame() error = %v", i, err)
		}
		if f.ID != id || f.Control != control || !bytes.Equal(f.Payload, payload) {
			t.Fatalf("round %d: round trip mismatch", i)
		}
	}
}

func TestFuzz_CorruptedFrameRejected(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(64))
		rng.Read(payload)
		raw := MustBuildFrame(uint8(rng.Intn(256)), Control(rng.Intn(4)), payload)

		pos := HeaderSize + rng.Intn(len(raw)-HeaderSize)
		raw[pos] ^= 1 << uint(rng.Intn(8))

		if _, err := ParseFrame(raw); !errors.Is(err, ErrChecksum) {
			t.Fatalf("round %d: corrupted byte %d accepted (err = %v)", i, pos, err)
		}
	}
}

func TestFuzz_DecoderRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(128))
		rng.Read(data)
		// Must never panic; errors are expected
		d.Feed(data)
	}
}

func TestFuzz_DecoderFindsFramesInNoise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds() / 10

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(16))
		rng.Read(payload)
		raw := MustBuildFrame(uint8(rng.Intn(256)), Control(rng.Intn(4)), payload)

		// Noise without magic bytes so the decoder stays idle
		noise := make([]byte, rng.Intn(16))
		for j := range noise {
			noise[j] = byte(rng.Intn(MagicByte))
		}

		frames, _ := NewDecoder().Feed(append(noise, raw...))
		if len(frames) != 1 || !bytes.Equal(frames[0].Payload, payload) {
			t.Fatalf("round %d: decoded %d frames", i, len(frames))
		}
	}
}

// ============================================================
// Serializer Fuzz Tests
// ============================================================

func TestFuzz_RegistrySchemasRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	specs := DefaultRegistry().All()

	for i := 0; i < rounds; i++ {
		spec := specs[rng.Intn(len(specs))]
		schema := spec.Request
		if rng.Intn(2) == 0 {
			schema = spec.Response
		}

		values := make([]any, len(schema))
		for j, p := range schema {
			values[j] = randomValue(rng, p)
		}

		payload, err := Encode(values, schema)
		if err != nil {
			t.Fatalf("round %d: %s Encode() error = %v", i, spec.Name, err)
		}
		got, err := Decode(payload, schema)
		if err != nil {
			t.Fatalf("round %d: %s Decode() error = %v", i, spec.Name, err)
		}
		if !reflect.DeepEqual(got, values) {
			t.Fatalf("round %d: %s round trip = %#v, want %#v", i, spec.Name, got, values)
		}
	}
}

func TestFuzz_DecodeRandomPayload(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	specs := DefaultRegistry().All()

	for i := 0; i < rounds; i++ {
		spec := specs[rng.Intn(len(specs))]
		payload := make([]byte, rng.Intn(40))
		rng.Read(payload)

		_, err := Decode(payload, spec.Response)
		if err != nil && !errors.Is(err, ErrTruncatedPayload) {
			t.Fatalf("round %d: %s Decode() error = %v", i, spec.Name, err)
		}
		if err == nil && len(payload) < spec.Response.MinSize() {
			t.Fatalf("round %d: %s accepted %d bytes (min %d)", i, spec.Name, len(payload), spec.Response.MinSize())
		}
	}
}

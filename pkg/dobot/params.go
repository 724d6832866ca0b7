// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the wire type of a single parameter
type Kind uint8

// Parameter kinds. All multi-byte numbers are little-endian.
const (
	KindBool Kind = iota
	KindU8
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindU64
	KindF32
	KindString
	KindBytes
)

var kindNames = map[Kind]string{
	KindBool:   "bool",
	KindU8:     "u8",
	KindI8:     "i8",
	KindU16:    "u16",
	KindI16:    "i16",
	KindU32:    "u32",
	KindI32:    "i32",
	KindU64:    "u64",
	KindF32:    "f32",
	KindString: "string",
	KindBytes:  "bytes",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText renders the kind name in JSON and YAML output
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Width returns the encoded size of fixed-width kinds, or 0 for text and bytes
func (k Kind) Width() int {
	switch k {
	case KindBool, KindU8, KindI8:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32, KindF32:
		return 4
	case KindU64:
		return 8
	default:
		return 0
	}
}

// Param describes one field of a payload.
//
// Size is only used by KindString and KindBytes: a non-zero Size is a fixed
// field (text is zero padded), zero means "rest of the payload" and is only
// valid for the last field.
type Param struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
	Size int    `json:"size,omitempty" yaml:"size,omitempty"`
}

// width returns the encoded size of p, or -1 for a variable tail
func (p Param) width() int {
	if w := p.Kind.Width(); w > 0 {
		return w
	}
	if p.Size > 0 {
		return p.Size
	}
	return -1
}

func (p Param) String() string {
	if p.Kind == KindString || p.Kind == KindBytes {
		if p.Size > 0 {
			return fmt.Sprintf("%s:%s[%d]", p.Name, p.Kind, p.Size)
		}
		return fmt.Sprintf("%s:%s[]", p.Name, p.Kind)
	}
	return fmt.Sprintf("%s:%s", p.Name, p.Kind)
}

// Schema is the ordered list of fields making up a payload
type Schema []Param

// Names returns the field names in order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// MinSize returns the number of bytes a payload needs to decode against s
func (s Schema) MinSize() int {
	n := 0
	for _, p := range s {
		if w := p.width(); w > 0 {
			n += w
		}
	}
	return n
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// validate checks that only the last field has a variable width
func (s Schema) validate() error {
	for i, p := range s {
		if _, ok := kindNames[p.Kind]; !ok {
			return fmt.Errorf("field %q: unknown kind %d", p.Name, p.Kind)
		}
		if p.width() < 0 && i != len(s)-1 {
			return fmt.Errorf("field %q: variable-length field must be last", p.Name)
		}
	}
	return nil
}

// Schema builders used by the command table

// Bool is a one-byte boolean field
func Bool(name string) Param { return Param{Name: name, Kind: KindBool} }

// U8 is an unsigned 8-bit field
func U8(name string) Param { return Param{Name: name, Kind: KindU8} }

// I8 is a signed 8-bit field
func I8(name string) Param { return Param{Name: name, Kind: KindI8} }

// U16 is an unsigned 16-bit field
func U16(name string) Param { return Param{Name: name, Kind: KindU16} }

// I16 is a signed 16-bit field
func I16(name string) Param { return Param{Name: name, Kind: KindI16} }

// U32 is an unsigned 32-bit field
func U32(name string) Param { return Param{Name: name, Kind: KindU32} }

// I32 is a signed 32-bit field
func I32(name string) Param { return Param{Name: name, Kind: KindI32} }

// U64 is an unsigned 64-bit field
func U64(name string) Param { return Param{Name: name, Kind: KindU64} }

// F32 is an IEEE-754 single precision field
func F32(name string) Param { return Param{Name: name, Kind: KindF32} }

// Str is a text field, size 0 meaning the rest of the payload
func Str(name string, size int) Param { return Param{Name: name, Kind: KindString, Size: size} }

// Raw is a byte field, size 0 meaning the rest of the payload
func Raw(name string, size int) Param { return Param{Name: name, Kind: KindBytes, Size: size} }

// F32s expands to count f32 fields named prefix0..prefixN
func F32s(prefix string, count int) []Param {
	out := make([]Param, count)
	for i := range out {
		out[i] = F32(fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

// Fields joins params and param groups into one schema
func Fields(parts ...any) Schema {
	var s Schema
	for _, part := range parts {
		switch v := part.(type) {
		case Param:
			s = append(s, v)
		case []Param:
			s = append(s, v...)
		case Schema:
			s = append(s, v...)
		default:
			panic(fmt.Sprintf("dobot: Fields: unexpected %T", part))
		}
	}
	return s
}

// Encode serializes values in schema order into a payload.
//
// Returns ErrSchemaMismatch if the number of values differs from the schema,
// a value has the wrong Go type, or a fixed-size field overflows.
func Encode(values []any, schema Schema) ([]byte, error) {
	if len(values) != len(schema) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrSchemaMismatch, len(schema), len(values))
	}

	buf := make([]byte, 0, schema.MinSize())
	for i, p := range schema {
		var err error
		buf, err = appendValue(buf, p, values[i])
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendValue(buf []byte, p Param, value any) ([]byte, error) {
	mismatch := func() error {
		return fmt.Errorf("%w: field %q wants %s, got %T", ErrSchemaMismatch, p.Name, p.Kind, value)
	}

	switch p.Kind {
	case KindBool:
		v, ok := value.(bool)
		if !ok {
			return nil, mismatch()
		}
		if v {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case KindU8:
		v, ok := value.(uint8)
		if !ok {
			return nil, mismatch()
		}
		return append(buf, v), nil
	case KindI8:
		v, ok := value.(int8)
		if !ok {
			return nil, mismatch()
		}
		return append(buf, uint8(v)), nil
	case KindU16:
		v, ok := value.(uint16)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint16(buf, v), nil
	case KindI16:
		v, ok := value.(int16)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint16(buf, uint16(v)), nil
	case KindU32:
		v, ok := value.(uint32)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint32(buf, v), nil
	case KindI32:
		v, ok := value.(int32)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint32(buf, uint32(v)), nil
	case KindU64:
		v, ok := value.(uint64)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint64(buf, v), nil
	case KindF32:
		v, ok := value.(float32)
		if !ok {
			return nil, mismatch()
		}
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v)), nil
	case KindString:
		v, ok := value.(string)
		if !ok {
			return nil, mismatch()
		}
		return appendFixed(buf, p, []byte(v))
	case KindBytes:
		v, ok := value.([]byte)
		if !ok {
			return nil, mismatch()
		}
		return appendFixed(buf, p, v)
	default:
		return nil, fmt.Errorf("%w: field %q has unknown kind %d", ErrSchemaMismatch, p.Name, p.Kind)
	}
}

func appendFixed(buf []byte, p Param, data []byte) ([]byte, error) {
	if p.Size == 0 {
		return append(buf, data...), nil
	}
	if len(data) > p.Size {
		return nil, fmt.Errorf("%w: field %q is %d bytes (max %d)", ErrSchemaMismatch, p.Name, len(data), p.Size)
	}
	buf = append(buf, data...)
	for i := len(data); i < p.Size; i++ {
		buf = append(buf, 0)
	}
	return buf, nil
}

// Decode parses payload into values in schema order.
//
// Returns ErrTruncatedPayload when fewer bytes remain than a field requires.
// Bytes left after the last fixed-width field are ignored.
func Decode(payload []byte, schema Schema) ([]any, error) {
	values := make([]any, 0, len(schema))
	offset := 0

	for _, p := range schema {
		w := p.width()
		if w < 0 {
			w = len(payload) - offset
		}
		if offset+w > len(payload) {
			return nil, fmt.Errorf("%w: field %q needs %d bytes at offset %d, payload has %d",
				ErrTruncatedPayload, p.Name, w, offset, len(payload))
		}
		values = append(values, decodeValue(p, payload[offset:offset+w]))
		offset += w
	}
	return values, nil
}

func decodeValue(p Param, b []byte) any {
	switch p.Kind {
	case KindBool:
		return b[0] != 0
	case KindU8:
		return b[0]
	case KindI8:
		return int8(b[0])
	case KindU16:
		return binary.LittleEndian.Uint16(b)
	case KindI16:
		return int16(binary.LittleEndian.Uint16(b))
	case KindU32:
		return binary.LittleEndian.Uint32(b)
	case KindI32:
		return int32(binary.LittleEndian.Uint32(b))
	case KindU64:
		return binary.LittleEndian.Uint64(b)
	case KindF32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case KindString:
		if p.Size > 0 {
			return strings.TrimRight(string(b), "\x00")
		}
		return string(b)
	default:
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
}

// ParseValue converts text (CLI or HTTP input) to the Go value for kind.
// Integers accept any base strconv understands (0x.., 0b..); bytes are hex.
func ParseValue(kind Kind, text string) (any, error) {
	text = strings.TrimSpace(text)
	switch kind {
	case KindBool:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", ErrSchemaMismatch, text)
		}
		return v, nil
	case KindU8, KindU16, KindU32, KindU64:
		bits := kind.Width() * 8
		v, err := strconv.ParseUint(text, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a %s", ErrSchemaMismatch, text, kind)
		}
		switch kind {
		case KindU8:
			return uint8(v), nil
		case KindU16:
			return uint16(v), nil
		case KindU32:
			return uint32(v), nil
		default:
			return v, nil
		}
	case KindI8, KindI16, KindI32:
		bits := kind.Width() * 8
		v, err := strconv.ParseInt(text, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a %s", ErrSchemaMismatch, text, kind)
		}
		switch kind {
		case KindI8:
			return int8(v), nil
		case KindI16:
			return int16(v), nil
		default:
			return int32(v), nil
		}
	case KindF32:
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a f32", ErrSchemaMismatch, text)
		}
		return float32(v), nil
	case KindString:
		return text, nil
	case KindBytes:
		v, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not hex", ErrSchemaMismatch, text)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrSchemaMismatch, kind)
	}
}

// ParseValues converts one text argument per field of schema
func ParseValues(schema Schema, args []string) ([]any, error) {
	if len(args) != len(schema) {
		return nil, fmt.Errorf("%w: expected %d arguments %s, got %d", ErrSchemaMismatch, len(schema), schema, len(args))
	}
	values := make([]any, len(args))
	for i, p := range schema {
		v, err := ParseValue(p.Kind, args[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", p.Name, err)
		}
		values[i] = v
	}
	return values, nil
}

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation
const maxExactFloat = 1 << 53

// CoerceValue converts a loosely typed value (e.g. decoded JSON: float64,
// string, bool) to the Go value for kind. Integers beyond 2^53 do not
// survive a float64 and are rejected; pass them as strings instead.
func CoerceValue(kind Kind, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return ParseValue(kind, v)
	case bool:
		if kind == KindBool {
			return v, nil
		}
	case float64:
		if kind == KindF32 {
			return float32(v), nil
		}
		if kind.Width() > 0 && kind != KindBool && v == math.Trunc(v) {
			if math.Abs(v) > maxExactFloat {
				return nil, fmt.Errorf("%w: %v is too large for an exact number, pass %s values as strings",
					ErrSchemaMismatch, v, kind)
			}
			return ParseValue(kind, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return nil, fmt.Errorf("%w: cannot use %T as %s", ErrSchemaMismatch, value, kind)
}

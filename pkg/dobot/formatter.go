// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// NamedValue pairs a decoded value with its field name
type NamedValue struct {
	Name  string `json:"name" yaml:"name"`
	Kind  Kind   `json:"kind" yaml:"kind"`
	Value any    `json:"value" yaml:"value"`
}

// Named zips values with the fields of schema. The reply of a queued
// command should be paired with QueueIndexSchema.
func Named(schema Schema, values []any) []NamedValue {
	n := min(len(schema), len(values))
	out := make([]NamedValue, n)
	for i := 0; i < n; i++ {
		out[i] = NamedValue{Name: schema[i].Name, Kind: schema[i].Kind, Value: values[i]}
	}
	return out
}

// ValueMap returns values keyed by field name
func ValueMap(schema Schema, values []any) map[string]any {
	m := make(map[string]any, len(values))
	for _, nv := range Named(schema, values) {
		m[nv.Name] = nv.Value
	}
	return m
}

// FormatFrame formats a frame into a human-readable string
func FormatFrame(r *Registry, f *TimedFrame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	name := FormatCommandName(r, f.Key())

	result := fmt.Sprintf("[%s] %s (%s) ctrl=0x%02X%s len=%d\n",
		timestamp, name, f.Key(), uint8(f.Control), formatControl(f.Control), len(f.Payload))

	spec, ok := r.LookupKey(f.ID, f.IsWrite())
	if !ok {
		if len(f.Payload) > 0 {
			result += fmt.Sprintf("  Payload: %s\n", hex.EncodeToString(f.Payload))
		}
		return result
	}

	schema, ok := fittingSchema(f.Payload, spec.Request, spec.ReplySchema(f.Control))
	if !ok {
		return result + fmt.Sprintf("  Payload (short): %s\n", hex.EncodeToString(f.Payload))
	}
	if len(schema) == 0 {
		return result + "  (no payload)\n"
	}
	values, err := Decode(f.Payload, schema)
	if err != nil {
		return result + fmt.Sprintf("  Decode error: %v\n", err)
	}
	return result + FormatValues(schema, values)
}

// FormatCommandName returns the registry name for key, or UNKNOWN
func FormatCommandName(r *Registry, key Key) string {
	if spec, ok := r.LookupKey(key.ID, key.Write); ok {
		return spec.Name
	}
	return "UNKNOWN"
}

func formatControl(c Control) string {
	var flags []string
	if c&ControlWrite != 0 {
		flags = append(flags, "write")
	}
	if c&ControlQueued != 0 {
		flags = append(flags, "queued")
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ",") + "]"
}

// FormatValues renders one "  name: value" line per field
func FormatValues(schema Schema, values []any) string {
	var sb strings.Builder
	for _, nv := range Named(schema, values) {
		fmt.Fprintf(&sb, "  %s: %s\n", nv.Name, FormatValue(nv.Value))
	}
	return sb.String()
}

// FormatValue renders a single decoded value
func FormatValue(v any) string {
	switch val := v.(type) {
	case float32:
		return fmt.Sprintf("%.3f", val)
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		if len(val) == 0 {
			return "(empty)"
		}
		return hex.EncodeToString(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatHex renders raw bytes the way the sniffer prints them
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

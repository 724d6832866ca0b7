// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

// Output formats accepted by --output
const (
	outputText  = "text"
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// reply is the machine readable form of one decoded reply
type reply struct {
	Command string         `json:"command" yaml:"command"`
	ID      uint8          `json:"id" yaml:"id"`
	Control uint8          `json:"control" yaml:"control"`
	Values  map[string]any `json:"values" yaml:"values"`
}

func newReply(spec *dobot.CommandSpec, ctrl dobot.Control, values []any) reply {
	out := dobot.ValueMap(spec.ReplySchema(ctrl), values)
	for k, v := range out {
		switch val := v.(type) {
		case []byte:
			out[k] = hex.EncodeToString(val)
		case float32:
			if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
				out[k] = nil
			}
		}
	}
	return reply{Command: spec.Name, ID: spec.ID, Control: uint8(ctrl), Values: out}
}

// printReply writes a decoded reply in format
func printReply(w io.Writer, format string, spec *dobot.CommandSpec, ctrl dobot.Control, values []any) error {
	switch format {
	case outputText, "":
		schema := spec.ReplySchema(ctrl)
		fmt.Fprintf(w, "%s (%s) ctrl=0x%02X\n", spec.Name, spec.Key(), uint8(ctrl))
		if len(schema) == 0 {
			fmt.Fprintln(w, "  ok")
			return nil
		}
		fmt.Fprint(w, dobot.FormatValues(schema, values))
		return nil
	default:
		return encodeOutput(w, format, newReply(spec, ctrl, values))
	}
}

// encodeOutput writes v as JSON or YAML
func encodeOutput(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func checkOutput(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("--output must be one of %s, got %q", strings.Join(allowed, ", "), format)
}

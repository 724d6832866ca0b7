// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyUnknownCommand AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyInvalidFloat
	AnomalyChecksumError
	AnomalyDecodeError
)

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a frame against the registry.
// Returns a slice of validation errors (empty if the frame looks sane).
//
// A passive observer cannot tell requests from replies, so the payload is
// accepted if it fits either the request or the reply layout.
func ValidateFrame(r *Registry, f *Frame) []ValidationError {
	errors := []ValidationError{}

	spec, ok := r.LookupKey(f.ID, f.IsWrite())
	if !ok {
		return append(errors, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command %s", f.Key()),
			Details: map[string]interface{}{"id": f.ID, "write": f.IsWrite()},
		})
	}

	schema, ok := fittingSchema(f.Payload, spec.Request, spec.ReplySchema(f.Control))
	if !ok {
		return append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s payload too short (%d bytes)", spec.Name, len(f.Payload)),
			Details: map[string]interface{}{
				"length":   len(f.Payload),
				"request":  spec.Request.MinSize(),
				"response": spec.ReplySchema(f.Control).MinSize(),
			},
		})
	}

	values, err := Decode(f.Payload, schema)
	if err != nil {
		return append(errors, ValidationError{
			Type:    AnomalyDecodeError,
			Message: err.Error(),
		})
	}
	for i, v := range values {
		if fv, ok := v.(float32); ok && (math.IsNaN(float64(fv)) || math.IsInf(float64(fv), 0)) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidFloat,
				Message: fmt.Sprintf("%s: %s is %v", spec.Name, schema[i].Name, fv),
				Details: map[string]interface{}{"field": schema[i].Name, "value": fv},
			})
		}
	}

	return errors
}

// fittingSchema picks the schema a payload was encoded with. An empty
// payload fits an empty schema; otherwise the larger schema is tried first.
func fittingSchema(payload []byte, a, b Schema) (Schema, bool) {
	if a.MinSize() < b.MinSize() {
		a, b = b, a
	}
	if len(payload) == 0 && b.MinSize() == 0 {
		return b, true
	}
	if len(payload) >= a.MinSize() {
		return a, true
	}
	if b.MinSize() > 0 && len(payload) >= b.MinSize() {
		return b, true
	}
	return nil, false
}

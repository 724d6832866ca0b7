// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaMismatch is returned when arguments do not fit a command schema.
	// Nothing is written to the wire.
	ErrSchemaMismatch = errors.New("dobot: schema mismatch")

	// ErrTruncatedPayload is returned when a payload is shorter than its schema.
	ErrTruncatedPayload = errors.New("dobot: truncated payload")

	// ErrUnknownCommand is returned by registry lookups that miss.
	ErrUnknownCommand = errors.New("dobot: unknown command")

	// ErrDuplicateCommand is returned when a command table reuses a name or key.
	ErrDuplicateCommand = errors.New("dobot: duplicate command")

	// ErrTransport wraps failures of the underlying byte channel.
	ErrTransport = errors.New("dobot: transport error")

	// ErrFraming is returned for bad magic, invalid length or an unexpected
	// reply. The stream position is unreliable afterwards.
	ErrFraming = errors.New("dobot: framing error")

	// ErrChecksum is returned when a structurally valid frame fails its checksum.
	ErrChecksum = errors.New("dobot: checksum error")

	// ErrTimeout is returned when a transaction misses its deadline. A late
	// reply may still arrive; call Conn.Resync before reusing the connection.
	ErrTimeout = errors.New("dobot: timeout")

	// ErrConnectionClosed is returned for operations on a closed Conn.
	ErrConnectionClosed = errors.New("dobot: connection closed")
)

// CommandError annotates an engine failure with the command that caused it.
type CommandError struct {
	Command string
	Key     Key
	Err     error
}

// Error implements the error interface
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Command, e.Key, e.Err)
}

// Unwrap returns the underlying error
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NeedsResync reports whether err leaves the connection in an unknown
// stream position, i.e. a stray or late reply may be waiting on the wire.
func NeedsResync(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrFraming) || errors.Is(err, ErrChecksum)
}

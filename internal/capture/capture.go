// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture journals transactions as a stream of CBOR records so a
// session can be replayed and inspected offline.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

// Record is one journaled transaction. Integer keys keep records compact.
type Record struct {
	Time     int64     `cbor:"1,keyasint"` // unix nanoseconds at request write
	Session  uuid.UUID `cbor:"2,keyasint"`
	Command  string    `cbor:"3,keyasint"`
	ID       uint8     `cbor:"4,keyasint"`
	Control  uint8     `cbor:"5,keyasint"`
	Request  []byte    `cbor:"6,keyasint"` // raw frame
	Response []byte    `cbor:"7,keyasint,omitempty"`
	Duration int64     `cbor:"8,keyasint"` // nanoseconds
	Error    string    `cbor:"9,keyasint,omitempty"`
}

// FromEvent converts a transaction event into a record
func FromEvent(e dobot.TransactionEvent) Record {
	r := Record{
		Time:     e.Started.UnixNano(),
		Session:  e.Session,
		Command:  e.Command,
		ID:       e.Key.ID,
		Control:  uint8(e.Control),
		Request:  e.Request,
		Response: e.Response,
		Duration: int64(e.Duration),
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}
	return r
}

// Started returns the request time
func (r Record) Started() time.Time {
	return time.Unix(0, r.Time)
}

// Elapsed returns the transaction duration
func (r Record) Elapsed() time.Duration {
	return time.Duration(r.Duration)
}

// OK returns true if the transaction succeeded
func (r Record) OK() bool {
	return r.Error == ""
}

// Writer appends records to a stream. It implements dobot.Observer.
type Writer struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	enc     *cbor.Encoder
	closer  io.Closer
	logger  *zap.Logger
	written int
}

// NewWriter journals to w
func NewWriter(w io.Writer, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	buf := bufio.NewWriter(w)
	return &Writer{buf: buf, enc: cbor.NewEncoder(buf), logger: logger}
}

// Create opens path for appending and journals to it
func Create(path string, logger *zap.Logger) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	w := NewWriter(f, logger)
	w.closer = f
	return w, nil
}

// Write appends r and flushes it
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush capture: %w", err)
	}
	w.written++
	return nil
}

// Written returns the number of records written
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// ObserveTransaction implements dobot.Observer
func (w *Writer) ObserveTransaction(e dobot.TransactionEvent) {
	if err := w.Write(FromEvent(e)); err != nil {
		w.logger.Warn("capture write failed", zap.Error(err))
	}
}

// Close flushes and closes the underlying file, if the writer owns one
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.buf.Flush()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
		w.closer = nil
	}
	return err
}

// Reader reads records back in order
type Reader struct {
	dec *cbor.Decoder
}

// NewReader reads records from r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(bufio.NewReader(r))}
}

// Next returns the next record, or io.EOF at a clean end of stream.
// A record cut short by a crash yields io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// ReadAll returns every record in r
func ReadAll(r io.Reader) ([]Record, error) {
	reader := NewReader(r)
	var records []Record
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

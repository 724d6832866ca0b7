// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of Statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	ChecksumErrors   uint64
	FramingErrors    uint64
	TimeoutErrors    uint64
	TransportErrors  uint64
	SchemaErrors     uint64
	MalformedFrames  uint64
	UnknownCommands  uint64
	LengthMismatches uint64
	AnomalousValues  uint64

	// Latency of successful transactions
	LatencyTotal time.Duration
	LatencyMax   time.Duration

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// Statistics tracks frame and transaction counts and error rates.
// It is safe for concurrent use and implements Observer.
type Statistics struct {
	mu sync.Mutex
	Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{Counters: Counters{
		StartTime:      now,
		LastUpdateTime: now,
	}}
}

// Update records a sniffed frame, its decode error and its validation errors
func (s *Statistics) Update(frame *Frame, decodeErr error, validationErrors []ValidationError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		s.countError(decodeErr)
		return
	}

	if len(validationErrors) == 0 {
		s.ValidFrames++
		return
	}
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyUnknownCommand:
			s.UnknownCommands++
			s.MalformedFrames++
		case AnomalyLengthMismatch, AnomalyDecodeError:
			s.LengthMismatches++
			s.MalformedFrames++
		case AnomalyInvalidFloat:
			s.AnomalousValues++
		}
	}
}

// ObserveTransaction records one engine transaction
func (s *Statistics) ObserveTransaction(e TransactionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if e.Err != nil {
		s.countError(e.Err)
		return
	}
	s.ValidFrames++
	s.LatencyTotal += e.Duration
	if e.Duration > s.LatencyMax {
		s.LatencyMax = e.Duration
	}
}

func (s *Statistics) countError(err error) {
	switch {
	case errors.Is(err, ErrChecksum):
		s.ChecksumErrors++
	case errors.Is(err, ErrFraming):
		s.FramingErrors++
	case errors.Is(err, ErrTimeout):
		s.TimeoutErrors++
	case errors.Is(err, ErrTransport), errors.Is(err, ErrConnectionClosed):
		s.TransportErrors++
	default:
		s.SchemaErrors++
	}
}

func (s *Counters) errorCount() uint64 {
	return s.ChecksumErrors + s.FramingErrors + s.TimeoutErrors + s.TransportErrors +
		s.SchemaErrors + s.MalformedFrames + s.AnomalousValues
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Counters) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

// AverageLatency returns the mean duration of successful transactions
func (c Counters) AverageLatency() time.Duration {
	if c.ValidFrames == 0 {
		return 0
	}
	return c.LatencyTotal / time.Duration(c.ValidFrames)
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return s.Counters
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// String returns a formatted statistics summary
func (c Counters) String() string {
	percent := func(n uint64) float64 {
		if c.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(c.TotalFrames)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", c.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", c.ValidFrames, percent(c.ValidFrames))

	if c.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", c.ChecksumErrors, percent(c.ChecksumErrors))
	}
	if c.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d (%.1f%%)\n", c.FramingErrors, percent(c.FramingErrors))
	}
	if c.TimeoutErrors > 0 {
		result += fmt.Sprintf("Timeouts:        %8d (%.1f%%)\n", c.TimeoutErrors, percent(c.TimeoutErrors))
	}
	if c.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d (%.1f%%)\n", c.TransportErrors, percent(c.TransportErrors))
	}
	if c.SchemaErrors > 0 {
		result += fmt.Sprintf("Schema Errors:   %8d (%.1f%%)\n", c.SchemaErrors, percent(c.SchemaErrors))
	}
	if c.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed Frames:%8d (%.1f%%)\n", c.MalformedFrames, percent(c.MalformedFrames))
		if c.UnknownCommands > 0 {
			result += fmt.Sprintf("  Unknown Command:  %5d\n", c.UnknownCommands)
		}
		if c.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", c.LengthMismatches)
		}
	}
	if c.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", c.AnomalousValues, percent(c.AnomalousValues))
	}
	if c.LatencyMax > 0 {
		result += fmt.Sprintf("Latency:         %8s avg, %s max\n", c.AverageLatency().Round(time.Microsecond), c.LatencyMax.Round(time.Microsecond))
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", c.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.Counters = Counters{StartTime: now, LastUpdateTime: now}
}

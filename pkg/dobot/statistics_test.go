// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	f := &Frame{ID: CmdPose}

	s.Update(f, nil, nil)
	s.Update(nil, fmt.Errorf("%w: expected 0x01, got 0x02", ErrChecksum), nil)
	s.Update(nil, fmt.Errorf("%w: bad magic", ErrFraming), nil)
	s.Update(f, nil, []ValidationError{{Type: AnomalyUnknownCommand}})
	s.Update(f, nil, []ValidationError{{Type: AnomalyLengthMismatch}})
	s.Update(f, nil, []ValidationError{{Type: AnomalyInvalidFloat}, {Type: AnomalyInvalidFloat}})

	snap := s.Snapshot()
	if snap.TotalFrames != 6 {
		t.Errorf("TotalFrames = %d, want 6", snap.TotalFrames)
	}
	if snap.ValidFrames != 1 {
		t.Errorf("ValidFrames = %d, want 1", snap.ValidFrames)
	}
	if snap.ChecksumErrors != 1 || snap.FramingErrors != 1 {
		t.Errorf("ChecksumErrors = %d, FramingErrors = %d, want 1, 1", snap.ChecksumErrors, snap.FramingErrors)
	}
	if snap.MalformedFrames != 2 || snap.UnknownCommands != 1 || snap.LengthMismatches != 1 {
		t.Errorf("Malformed = %d, Unknown = %d, Length = %d", snap.MalformedFrames, snap.UnknownCommands, snap.LengthMismatches)
	}
	if snap.AnomalousValues != 2 {
		t.Errorf("AnomalousValues = %d, want 2", snap.AnomalousValues)
	}
}

func TestStatistics_ObserveTransaction(t *testing.T) {
	s := NewStatistics()

	s.ObserveTransaction(TransactionEvent{Duration: 10 * time.Millisecond})
	s.ObserveTransaction(TransactionEvent{Duration: 30 * time.Millisecond})
	s.ObserveTransaction(TransactionEvent{Err: &CommandError{Command: "get_pose", Err: ErrTimeout}})
	s.ObserveTransaction(TransactionEvent{Err: fmt.Errorf("%w: broken pipe", ErrTransport)})

	snap := s.Snapshot()
	if snap.ValidFrames != 2 || snap.TimeoutErrors != 1 || snap.TransportErrors != 1 {
		t.Errorf("counters = %+v", snap)
	}
	if got := snap.AverageLatency(); got != 20*time.Millisecond {
		t.Errorf("AverageLatency() = %v, want 20ms", got)
	}
	if snap.LatencyMax != 30*time.Millisecond {
		t.Errorf("LatencyMax = %v, want 30ms", snap.LatencyMax)
	}
}

func TestStatistics_StringAndReset(t *testing.T) {
	s := NewStatistics()
	s.Update(nil, ErrChecksum, nil)
	s.ObserveTransaction(TransactionEvent{Duration: time.Millisecond})

	out := s.String()
	for _, want := range []string{"Total Frames:", "Checksum Errors:", "Latency:", "Frame Rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	snap := s.Snapshot()
	if snap.TotalFrames != 0 || snap.ChecksumErrors != 0 || snap.LatencyMax != 0 {
		t.Errorf("Reset() left %+v", snap)
	}
}

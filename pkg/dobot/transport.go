// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Transport is the byte channel to the controller.
//
// A go.bug.st/serial Port satisfies it as is. Read must return (0, nil)
// once the read timeout elapses with no data, the way serial ports do.
type Transport interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// pollInterval bounds a single blocking read so deadlines and
// cancellation are noticed promptly
const pollInterval = 50 * time.Millisecond

// deadlineReader adapts a Transport to io.Reader with an absolute deadline.
// Reads past the deadline, or after ctx ends, fail with ErrTimeout.
type deadlineReader struct {
	ctx      context.Context
	t        Transport
	deadline time.Time
	ctxBound bool // deadline comes from ctx
	slice    time.Duration
}

func newDeadlineReader(ctx context.Context, t Transport, timeout time.Duration) *deadlineReader {
	r := &deadlineReader{ctx: ctx, t: t, deadline: time.Now().Add(timeout)}
	if d, ok := ctx.Deadline(); ok && d.Before(r.deadline) {
		r.deadline = d
		r.ctxBound = true
	}
	return r
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	for {
		if err := r.ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		remaining := time.Until(r.deadline)
		if remaining <= 0 {
			if r.ctxBound {
				return 0, fmt.Errorf("%w: %w", ErrTimeout, context.DeadlineExceeded)
			}
			return 0, fmt.Errorf("%w: no reply within deadline", ErrTimeout)
		}

		slice := min(remaining, pollInterval)
		if slice != r.slice {
			if err := r.t.SetReadTimeout(slice); err != nil {
				return 0, fmt.Errorf("%w: set read timeout: %w", ErrTransport, err)
			}
			r.slice = slice
		}

		n, err := r.t.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: transport closed: %w", ErrTransport, err)
			}
			return 0, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
}

// writeWithTimeout writes data, giving up after timeout or when ctx ends.
// A write that is given up on keeps running in the background: the
// returned channel is non-nil in that case and closes once Write returns.
// The transport must not be used again before then.
func writeWithTimeout(ctx context.Context, t Transport, data []byte, timeout time.Duration) (<-chan struct{}, error) {
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		n, err := t.Write(data)
		if err == nil && n != len(data) {
			err = io.ErrShortWrite
		}
		done <- err
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%w: write: %w", ErrTransport, err)
		}
		return nil, nil
	case <-timer.C:
		return finished, fmt.Errorf("%w: write did not complete within %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return finished, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

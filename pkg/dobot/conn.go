// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Conn is a connection to one controller.
//
// The controller does not tag replies, so a reply belongs to whichever
// request was written last. Conn therefore holds an exclusive guard from
// the write of a request until its reply has been read; concurrent callers
// queue on the guard in arrival order. A Conn may be shared between
// goroutines without further locking.
type Conn struct {
	transport Transport
	registry  *Registry
	guard     *semaphore.Weighted
	closed    atomic.Bool

	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
	observer     Observer
	limiter      *rate.Limiter
	session      uuid.UUID
}

// Open wraps an already opened transport. The Conn owns the transport
// from here on and closes it in Close.
func Open(t Transport, opts ...Option) *Conn {
	c := &Conn{
		transport:    t,
		guard:        semaphore.NewWeighted(1),
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.session == uuid.Nil {
		c.session = uuid.New()
	}
	c.logger = c.logger.With(zap.String("session", c.session.String()))

	return c
}

// Registry returns the command table used by Invoke
func (c *Conn) Registry() *Registry {
	return c.registry
}

// SessionID returns the id attached to this connection's logs and events
func (c *Conn) SessionID() uuid.UUID {
	return c.session
}

// IsOpen returns true until Close is called
func (c *Conn) IsOpen() bool {
	return !c.closed.Load()
}

// Close waits for the in-flight transaction, then closes the transport.
// Calling Close more than once is a no-op.
func (c *Conn) Close() error {
	if err := c.guard.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer c.guard.Release(1)

	if c.closed.Swap(true) {
		return nil
	}
	c.logger.Debug("closing connection")
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrTransport, err)
	}
	return nil
}

// Invoke runs the named command with args and returns the decoded reply.
//
// Queue-eligible commands set the queued bit unless WithQueue(false) is
// passed; their reply is then the device queue index (a single uint64).
func (c *Conn) Invoke(ctx context.Context, name string, args []any, opts ...CallOption) ([]any, error) {
	spec, err := c.registry.Command(name)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, spec, args, opts...)
}

// Do runs spec with args. Arguments are validated before anything is
// written, so a schema mismatch never reaches the wire.
func (c *Conn) Do(ctx context.Context, spec *CommandSpec, args []any, opts ...CallOption) ([]any, error) {
	ctrl := resolveControl(spec, opts)
	wrap := func(err error) error {
		return &CommandError{Command: spec.Name, Key: spec.Key(), Err: err}
	}

	payload, err := Encode(args, spec.Request)
	if err != nil {
		return nil, wrap(err)
	}
	raw, err := BuildFrame(spec.ID, ctrl, payload)
	if err != nil {
		return nil, wrap(err)
	}

	start := time.Now()
	reply, respRaw, err := c.roundTrip(ctx, spec.ID, raw)
	var values []any
	if err == nil {
		values, err = Decode(reply.Payload, spec.ReplySchema(ctrl))
	}
	c.finish(spec.Name, spec.Key(), ctrl, raw, respRaw, start, err)

	if err != nil {
		return nil, wrap(err)
	}
	return values, nil
}

// Exchange sends f as is and returns the reply frame undecoded. It is the
// escape hatch for commands whose reply layout is not described by the
// registry.
func (c *Conn) Exchange(ctx context.Context, f Frame) (Frame, error) {
	name := "raw"
	if spec, ok := c.registry.LookupKey(f.ID, f.IsWrite()); ok {
		name = spec.Name
	}
	wrap := func(err error) error {
		return &CommandError{Command: name, Key: f.Key(), Err: err}
	}

	raw, err := EncodeFrame(f)
	if err != nil {
		return Frame{}, wrap(err)
	}

	start := time.Now()
	reply, respRaw, err := c.roundTrip(ctx, f.ID, raw)
	c.finish(name, f.Key(), f.Control, raw, respRaw, start, err)
	if err != nil {
		return Frame{}, wrap(err)
	}
	return reply, nil
}

// Resync discards input until the line has been silent for quiet and
// returns the number of bytes dropped. Use it after a timeout or framing
// error, when a late reply may still be on its way.
func (c *Conn) Resync(ctx context.Context, quiet time.Duration) (int, error) {
	if err := c.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.guard.Release(1)

	if err := c.transport.SetReadTimeout(quiet); err != nil {
		return 0, fmt.Errorf("%w: set read timeout: %w", ErrTransport, err)
	}

	buf := make([]byte, 256)
	dropped := 0
	for {
		if err := ctx.Err(); err != nil {
			return dropped, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		n, err := c.transport.Read(buf)
		dropped += n
		if err != nil {
			return dropped, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if n == 0 {
			break
		}
	}

	if dropped > 0 {
		c.logger.Info("resync discarded stale input", zap.Int("bytes", dropped))
	}
	return dropped, nil
}

// acquire waits for a rate limit token, then for exclusive use of the
// transport. Nothing has been written if it fails.
func (c *Conn) acquire(ctx context.Context) error {
	if !c.IsOpen() {
		return ErrConnectionClosed
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limit: %w", ErrTimeout, err)
		}
	}
	if err := c.guard.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: waiting for connection: %w", ErrTimeout, err)
	}
	if !c.IsOpen() {
		c.guard.Release(1)
		return ErrConnectionClosed
	}
	return nil
}

// roundTrip writes one request frame and reads its reply under the guard
func (c *Conn) roundTrip(ctx context.Context, id uint8, request []byte) (Frame, []byte, error) {
	if err := c.acquire(ctx); err != nil {
		return Frame{}, nil, err
	}

	stalled, err := writeWithTimeout(ctx, c.transport, request, c.writeTimeout)
	if stalled != nil {
		// The abandoned write still owns the transport; the guard goes
		// with it so the next request cannot interleave.
		c.logger.Warn("write stalled, holding connection until it returns", zap.Error(err))
		go func() {
			<-stalled
			c.guard.Release(1)
		}()
		return Frame{}, nil, err
	}
	defer c.guard.Release(1)
	if err != nil {
		return Frame{}, nil, err
	}

	reply, err := ReadFrame(newDeadlineReader(ctx, c.transport, c.readTimeout))
	if err != nil {
		return Frame{}, nil, err
	}
	respRaw := MustBuildFrame(reply.ID, reply.Control, reply.Payload)

	if reply.ID != id {
		return reply, respRaw, fmt.Errorf("%w: unexpected reply id %d to request id %d", ErrFraming, reply.ID, id)
	}
	return reply, respRaw, nil
}

// finish logs a transaction and hands it to the observer
func (c *Conn) finish(name string, key Key, ctrl Control, request, response []byte, start time.Time, err error) {
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.String("command", name),
		zap.Uint8("id", key.ID),
		zap.Uint8("control", uint8(ctrl)),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		c.logger.Warn("transaction failed", append(fields, zap.Error(err))...)
	} else {
		c.logger.Debug("transaction", fields...)
	}

	if c.observer != nil {
		c.observer.ObserveTransaction(TransactionEvent{
			Session:  c.session,
			Command:  name,
			Key:      key,
			Control:  ctrl,
			Request:  request,
			Response: response,
			Started:  start,
			Duration: elapsed,
			Err:      err,
		})
	}
}

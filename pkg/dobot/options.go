// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default engine timeouts
const (
	DefaultReadTimeout  = 500 * time.Millisecond
	DefaultWriteTimeout = 500 * time.Millisecond
)

// Option configures a Conn
type Option func(*Conn)

// WithRegistry sets the command table (DefaultRegistry otherwise)
func WithRegistry(r *Registry) Option {
	return func(c *Conn) { c.registry = r }
}

// WithReadTimeout bounds the wait for a complete reply
func WithReadTimeout(d time.Duration) Option {
	return func(c *Conn) { c.readTimeout = d }
}

// WithWriteTimeout bounds the time spent writing a request
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Conn) { c.writeTimeout = d }
}

// WithLogger sets the logger used for transaction logs
func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) { c.logger = l }
}

// WithObserver registers an observer for every transaction
func WithObserver(o Observer) Option {
	return func(c *Conn) { c.observer = o }
}

// WithRateLimit throttles transactions. Waiting for a token happens
// before the connection is acquired.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Conn) { c.limiter = l }
}

// WithSessionID sets the id attached to logs and transaction events
func WithSessionID(id uuid.UUID) Option {
	return func(c *Conn) { c.session = id }
}

// CallOption adjusts a single Invoke
type CallOption func(*callOptions)

type callOptions struct {
	queue   *bool
	control *Control
}

// WithQueue sets or clears the queued bit for this call
func WithQueue(queue bool) CallOption {
	return func(o *callOptions) { o.queue = &queue }
}

// WithControl replaces the whole control byte for this call
func WithControl(ctrl Control) CallOption {
	return func(o *callOptions) { o.control = &ctrl }
}

// resolveControl picks the control byte for spec given the call options
func resolveControl(spec *CommandSpec, opts []CallOption) Control {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.control != nil {
		return *o.control
	}
	if o.queue != nil {
		return spec.Control(*o.queue)
	}
	return spec.DefaultControl()
}

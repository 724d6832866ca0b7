// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// TCPConnection adapts a stream socket (ser2net, ESP-Link) to dobot.Transport
type TCPConnection struct {
	conn    net.Conn
	timeout atomic.Int64 // read timeout in nanoseconds, 0 = block
}

// NewTCPConnection wraps an established connection
func NewTCPConnection(conn net.Conn) *TCPConnection {
	return &TCPConnection{conn: conn}
}

// DialTCP connects to a raw TCP serial server at addr (host:port)
func DialTCP(ctx context.Context, addr string) (*TCPConnection, error) {
	var d net.Dialer
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("TCP connection to %s failed: %w", addr, err)
	}
	return NewTCPConnection(conn), nil
}

// SetReadTimeout bounds each following Read
func (c *TCPConnection) SetReadTimeout(t time.Duration) error {
	c.timeout.Store(int64(t))
	return nil
}

// Read returns (0, nil) when the read timeout elapses with no data
func (c *TCPConnection) Read(p []byte) (int, error) {
	var deadline time.Time
	if t := time.Duration(c.timeout.Load()); t > 0 {
		deadline = time.Now().Add(t)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	n, err := c.conn.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (c *TCPConnection) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *TCPConnection) Close() error {
	return c.conn.Close()
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection carries the serial byte stream in binary WebSocket
// messages. A reader goroutine pumps messages into a channel so that Read
// can honor the read timeout.
type WebSocketConnection struct {
	conn    *websocket.Conn
	msgs    chan []byte
	done    chan struct{}
	err     error // set before msgs is closed
	timeout atomic.Int64

	buf       []byte
	bufOffset int

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebSocketConnection starts the reader for an established connection
func NewWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn: conn,
		msgs: make(chan []byte, 16),
		done: make(chan struct{}),
	}
	go w.readLoop()
	return w
}

func (w *WebSocketConnection) readLoop() {
	defer close(w.msgs)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.err = err
			return
		}
		// Text frames are bridge status chatter
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		select {
		case w.msgs <- data:
		case <-w.done:
			w.err = ErrConnectionClosed
			return
		}
	}
}

// SetReadTimeout bounds each following Read
func (w *WebSocketConnection) SetReadTimeout(t time.Duration) error {
	w.timeout.Store(int64(t))
	return nil
}

// Read returns buffered message bytes first, then waits for the next
// message. It returns (0, nil) when the read timeout elapses.
func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	var timeout <-chan time.Time
	if t := time.Duration(w.timeout.Load()); t > 0 {
		timer := time.NewTimer(t)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case data, ok := <-w.msgs:
		if !ok {
			return 0, fmt.Errorf("%w: %w", ErrConnectionClosed, w.err)
		}
		w.buf = data
		w.bufOffset = copy(p, data)
		return w.bufOffset, nil
	case <-timeout:
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

// DialWebSocket opens a WebSocket connection with HTTP Basic auth
func DialWebSocket(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocketConnection(conn), nil
}

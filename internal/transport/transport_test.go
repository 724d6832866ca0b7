// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/dobotlink/internal/simulator"
	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

// bridgeServer relays binary WebSocket messages to a simulated device,
// splitting every reply over two messages
func bridgeServer(t *testing.T, wantAuth string) *httptest.Server {
	t.Helper()
	device := simulator.New(dobot.DefaultRegistry(), nil)
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" && r.Header.Get("Authorization") != wantAuth {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte("bridge ready"))

		decoder := dobot.NewDecoder()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames, _ := decoder.Feed(data)
			for _, f := range frames {
				reply, ok := device.Handle(f.Frame)
				if !ok {
					continue
				}
				raw, _ := dobot.EncodeFrame(reply)
				half := len(raw) / 2
				_ = conn.WriteMessage(websocket.BinaryMessage, raw[:half])
				_ = conn.WriteMessage(websocket.BinaryMessage, raw[half:])
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWebSocket_Invoke(t *testing.T) {
	srv := bridgeServer(t, "")
	defer srv.Close()

	ws, err := DialWebSocket(context.Background(), wsURL(srv), "", "", false)
	require.NoError(t, err)

	conn := dobot.Open(ws)
	defer conn.Close()

	values, err := conn.Invoke(context.Background(), "get_device_name", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"Dobot Magician"}, values)

	values, err = conn.Invoke(context.Background(), "set_io_do", []any{uint8(3), uint8(1)})
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(0)}, values)
}

func TestWebSocket_BasicAuth(t *testing.T) {
	srv := bridgeServer(t, "Basic YWRtaW46c2VjcmV0")
	defer srv.Close()

	_, err := DialWebSocket(context.Background(), wsURL(srv), "admin", "wrong", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")

	ws, err := DialWebSocket(context.Background(), wsURL(srv), "admin", "secret", false)
	require.NoError(t, err)
	assert.NoError(t, ws.Close())
	assert.NoError(t, ws.Close(), "second Close is a no-op")
}

func TestWebSocket_ReadTimeout(t *testing.T) {
	srv := bridgeServer(t, "")
	defer srv.Close()

	ws, err := DialWebSocket(context.Background(), wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadTimeout(20*time.Millisecond))
	buf := make([]byte, 16)
	start := time.Now()
	n, err := ws.Read(buf)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWebSocket_ClosedByServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	ws, err := DialWebSocket(context.Background(), wsURL(srv), "", "", false)
	require.NoError(t, err)
	defer ws.Close()

	_, err = ws.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestDialWebSocket_BadScheme(t *testing.T) {
	_, err := DialWebSocket(context.Background(), "http://localhost:1", "", "", false)
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func TestTCP_Invoke(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	device := simulator.New(dobot.DefaultRegistry(), nil)
	go device.ServeListener(ctx, l)

	tcp, err := DialTCP(ctx, l.Addr().String())
	require.NoError(t, err)

	conn := dobot.Open(tcp, dobot.WithReadTimeout(time.Second))
	defer conn.Close()

	values, err := conn.Invoke(ctx, "get_io_di", []any{uint8(9)})
	require.NoError(t, err)
	assert.Equal(t, []any{uint8(9), uint8(0)}, values)
}

func TestTCP_ReadTimeoutReturnsNoData(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	c := NewTCPConnection(client)
	defer c.Close()

	require.NoError(t, c.SetReadTimeout(10*time.Millisecond))
	n, err := c.Read(make([]byte, 4))
	assert.NoError(t, err)
	assert.Zero(t, n)

	go server.Write([]byte{0xAA})
	require.NoError(t, c.SetReadTimeout(time.Second))
	n, err = c.Read(make([]byte, 4))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPortInfo_Bridge(t *testing.T) {
	assert.Equal(t, "CH340", PortInfo{VID: "1A86", PID: "7523"}.Bridge())
	assert.Equal(t, "", PortInfo{VID: "0403", PID: "6001"}.Bridge())
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package simulator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

func request(t *testing.T, name string, queued bool, args ...any) dobot.Frame {
	t.Helper()
	spec, err := dobot.DefaultRegistry().Command(name)
	require.NoError(t, err)
	payload, err := dobot.Encode(args, spec.Request)
	require.NoError(t, err)
	return dobot.Frame{ID: spec.ID, Control: spec.Control(queued), Payload: payload}
}

func TestHandle_WriteThenRead(t *testing.T) {
	d := New(dobot.DefaultRegistry(), nil)

	reply, ok := d.Handle(request(t, "set_device_name", false, "bench arm"))
	require.True(t, ok)
	assert.Empty(t, reply.Payload)

	reply, ok = d.Handle(request(t, "get_device_name", false))
	require.True(t, ok)
	assert.Equal(t, "bench arm", string(reply.Payload))
}

func TestHandle_QueuedIndex(t *testing.T) {
	d := New(dobot.DefaultRegistry(), nil)

	for want := uint64(0); want < 3; want++ {
		reply, ok := d.Handle(request(t, "set_io_do", true, uint8(2), uint8(1)))
		require.True(t, ok)
		values, err := dobot.Decode(reply.Payload, dobot.QueueIndexSchema)
		require.NoError(t, err)
		assert.Equal(t, want, values[0])
	}

	reply, _ := d.Handle(request(t, "get_current_queue_index", false))
	values, err := dobot.Decode(reply.Payload, dobot.QueueIndexSchema)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), values[0])

	d.Handle(request(t, "clear_queue", false))
	assert.Equal(t, uint64(0), d.QueueIndex())
}

func TestHandle_UnencodableReplyIsDropped(t *testing.T) {
	r := dobot.MustNewRegistry([]dobot.CommandSpec{{
		Name:     "get_current_queue_index",
		ID:       dobot.CmdQueueCurrentIndex,
		Response: dobot.Fields(dobot.U8("queued_index")),
	}})
	d := New(r, nil)

	_, ok := d.Handle(dobot.Frame{ID: dobot.CmdQueueCurrentIndex})
	assert.False(t, ok, "a reply that does not fit its layout must not go out empty")
}

func TestHandle_AddressedReadEchoesAddress(t *testing.T) {
	d := New(dobot.DefaultRegistry(), nil)

	reply, ok := d.Handle(request(t, "get_io_di", false, uint8(7)))
	require.True(t, ok)
	assert.Equal(t, []byte{7, 0}, reply.Payload)
}

func TestHandle_MoveUpdatesPose(t *testing.T) {
	d := New(dobot.DefaultRegistry(), nil)
	d.Handle(request(t, "set_point_to_point_command", true, uint8(1), float32(200), float32(10), float32(-5), float32(45)))

	spec, _ := dobot.DefaultRegistry().Command("get_pose")
	reply, ok := d.Handle(request(t, "get_pose", false))
	require.True(t, ok)
	values, err := dobot.Decode(reply.Payload, spec.Response)
	require.NoError(t, err)
	assert.Equal(t, []any{float32(200), float32(10), float32(-5), float32(45)}, values[:4])
}

func TestHandle_UnknownAndSilenced(t *testing.T) {
	d := New(dobot.DefaultRegistry(), nil)

	_, ok := d.Handle(dobot.Frame{ID: 199})
	assert.False(t, ok)

	d.Silence(dobot.Key{ID: dobot.CmdPose})
	_, ok = d.Handle(request(t, "get_pose", false))
	assert.False(t, ok)
	assert.Equal(t, uint64(2), d.Frames())
}

func TestServeListener(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d := New(dobot.DefaultRegistry(), nil)
	done := make(chan error, 1)
	go func() { done <- d.ServeListener(ctx, l) }()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	raw, err := dobot.EncodeFrame(request(t, "get_device_name", false))
	require.NoError(t, err)
	_, err = conn.Write(raw)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	reply, err := dobot.ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, "Dobot Magician", string(reply.Payload))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeListener did not return after cancel")
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

func TestObserveTransaction(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	index, err := dobot.Encode([]any{uint64(41)}, dobot.QueueIndexSchema)
	require.NoError(t, err)
	ctrl := dobot.ControlWrite | dobot.ControlQueued
	request := dobot.MustBuildFrame(dobot.CmdIODO, ctrl, []byte{1, 1})
	reply := dobot.MustBuildFrame(dobot.CmdIODO, ctrl, index)

	m.ObserveTransaction(dobot.TransactionEvent{Command: "get_pose", Response: make([]byte, 38), Duration: 5 * time.Millisecond})
	m.ObserveTransaction(dobot.TransactionEvent{
		Command:  "set_io_do",
		Control:  ctrl,
		Request:  request,
		Response: reply,
	})
	m.ObserveTransaction(dobot.TransactionEvent{
		Command: "get_pose",
		Err:     &dobot.CommandError{Command: "get_pose", Err: fmt.Errorf("%w: no reply", dobot.ErrTimeout)},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("get_pose", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("get_pose", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transactions.WithLabelValues("set_io_do", "ok")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.BytesSent))
	assert.Equal(t, 52.0, testutil.ToFloat64(m.BytesReceived))
	assert.Equal(t, 41.0, testutil.ToFloat64(m.QueueIndex))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Duration))
}

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{dobot.ErrChecksum, "checksum"},
		{fmt.Errorf("%w: bad magic", dobot.ErrFraming), "framing"},
		{dobot.ErrTransport, "transport"},
		{dobot.ErrTruncatedPayload, "schema"},
		{dobot.ErrUnknownCommand, "unknown"},
		{dobot.ErrConnectionClosed, "closed"},
		{fmt.Errorf("other"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Result(tt.err), "Result(%v)", tt.err)
	}
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.ObserveTransaction(dobot.TransactionEvent{Command: "get_device_name"})

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `dobotlink_transactions_total{command="get_device_name",result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package simulator answers Dobot frames the way a controller does, for
// bench testing the CLI and the HTTP bridge without an arm attached.
//
// Write commands store their payload by command id and read commands with
// the same id return it. Queued writes advance the queue index.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

// Device is a simulated controller
type Device struct {
	registry *dobot.Registry
	logger   *zap.Logger

	mu         sync.Mutex
	stored     map[uint8][]byte
	queueIndex uint64
	frames     uint64
	silent     map[dobot.Key]bool
}

// New creates a device answering the commands in r
func New(r *dobot.Registry, logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Device{
		registry: r,
		logger:   logger,
		stored:   make(map[uint8][]byte),
		silent:   make(map[dobot.Key]bool),
	}
	d.stored[dobot.CmdDeviceName] = []byte("Dobot Magician")
	d.stored[dobot.CmdDeviceVersion] = []byte{3, 7, 0}
	return d
}

// Silence makes the device swallow requests for key without replying
func (d *Device) Silence(key dobot.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silent[key] = true
}

// QueueIndex returns the index the next queued command will get
func (d *Device) QueueIndex() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queueIndex
}

// Frames returns the number of requests handled
func (d *Device) Frames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Handle returns the reply to req. ok is false for unknown or silenced
// commands, which a controller leaves unanswered, and for replies the
// registry's layout cannot encode.
func (d *Device) Handle(req dobot.Frame) (reply dobot.Frame, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames++

	key := req.Key()
	spec, known := d.registry.LookupKey(key.ID, key.Write)
	if !known || d.silent[key] {
		d.logger.Debug("request ignored", zap.Stringer("key", key), zap.Bool("known", known))
		return dobot.Frame{}, false
	}

	reply = dobot.Frame{ID: req.ID, Control: req.Control}

	switch {
	case spec.ID == dobot.CmdQueueClear:
		d.queueIndex = 0
	case spec.ID == dobot.CmdQueueCurrentIndex:
		payload, err := dobot.Encode([]any{d.queueIndex}, spec.Response)
		if err != nil {
			d.logger.Error("encode queue index reply", zap.Stringer("key", key), zap.Error(err))
			return dobot.Frame{}, false
		}
		reply.Payload = payload
		return reply, true
	case spec.Write:
		d.store(spec, req.Payload)
	default:
		reply.Payload = d.load(spec, req.Payload)
	}

	if req.IsQueued() {
		payload, err := dobot.Encode([]any{d.queueIndex}, dobot.QueueIndexSchema)
		if err != nil {
			d.logger.Error("encode queued reply", zap.Stringer("key", key), zap.Error(err))
			return dobot.Frame{}, false
		}
		reply.Payload = payload
		d.queueIndex++
	}
	return reply, true
}

func (d *Device) store(spec *dobot.CommandSpec, payload []byte) {
	data := make([]byte, len(payload))
	copy(data, payload)
	d.stored[spec.ID] = data

	// A point to point move ends at its target
	if spec.ID == dobot.CmdPTPCmd {
		values, err := dobot.Decode(payload, spec.Request)
		if err != nil {
			return
		}
		pose, err := dobot.Encode(append(values[1:5], float32(0), float32(0), float32(0), float32(0)),
			dobot.Fields(dobot.F32s("p", 8)))
		if err == nil {
			d.stored[dobot.CmdPose] = pose
		}
	}
}

// load returns the stored payload when it fits the response layout, or the
// request echoed and zero padded otherwise (so addressed reads keep their
// address).
func (d *Device) load(spec *dobot.CommandSpec, request []byte) []byte {
	if data, ok := d.stored[spec.ID]; ok && fits(data, spec.Response) {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}

	out := make([]byte, spec.Response.MinSize())
	copy(out, request)
	return out
}

func fits(payload []byte, schema dobot.Schema) bool {
	if _, err := dobot.Decode(payload, schema); err != nil {
		return false
	}
	if n := len(schema); n > 0 && schema[n-1].Size == 0 &&
		(schema[n-1].Kind == dobot.KindString || schema[n-1].Kind == dobot.KindBytes) {
		return true
	}
	return len(payload) == schema.MinSize()
}

// Serve answers frames read from rw until ctx ends or rw fails
func (d *Device) Serve(ctx context.Context, rw io.ReadWriter) error {
	decoder := dobot.NewDecoder()
	buf := make([]byte, 256)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rw.Read(buf)
		for i := 0; i < n; i++ {
			frame, derr := decoder.DecodeByte(buf[i])
			if derr != nil {
				d.logger.Debug("discarding malformed request", zap.Error(derr))
				continue
			}
			if frame == nil {
				continue
			}
			reply, ok := d.Handle(frame.Frame)
			if !ok {
				continue
			}
			raw, err := dobot.EncodeFrame(reply)
			if err != nil {
				return err
			}
			if _, err := rw.Write(raw); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// ServeListener accepts connections on l and serves each until ctx ends.
// Clients share one device state.
func (d *Device) ServeListener(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.logger.Info("client connected", zap.Stringer("remote", conn.RemoteAddr()))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()

			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()

			if err := d.Serve(ctx, conn); err != nil && ctx.Err() == nil {
				d.logger.Warn("client session ended", zap.Error(err))
			}
		}()
	}
}

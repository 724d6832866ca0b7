// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/dobotlink/internal/capture"
	"github.com/Thermoquad/dobotlink/internal/transport"
	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

// OpenTransport opens a WebSocket, TCP or serial transport based on settings
func OpenTransport(ctx context.Context) (dobot.Transport, string, error) {
	if url := cfg.Transport.URL; url != "" {
		password := ""
		if cfg.Transport.Username != "" {
			var err error
			password, err = transport.GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := transport.DialWebSocket(ctx, url, cfg.Transport.Username, password, cfg.Transport.Insecure)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", url), nil
	}

	if addr := cfg.Transport.TCP; addr != "" {
		conn, err := transport.DialTCP(ctx, addr)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("TCP: %s", addr), nil
	}

	if port := cfg.Serial.Port; port != "" {
		conn, err := transport.OpenSerial(port, cfg.Serial.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", port, cfg.Serial.Baud), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --tcp must be specified")
}

// session is an open connection plus the resources tied to its lifetime
type session struct {
	*dobot.Conn
	info    string
	capture *capture.Writer
}

func (s *session) Close() error {
	err := s.Conn.Close()
	if s.capture != nil {
		err = errors.Join(err, s.capture.Close())
	}
	return err
}

// openSession opens the transport and wraps it in a connection configured
// from settings. A capture journal is attached when capture.file is set.
func openSession(ctx context.Context, observers ...dobot.Observer) (*session, error) {
	t, info, err := OpenTransport(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{info: info}
	if path := cfg.Capture.File; path != "" {
		w, err := capture.Create(path, logger)
		if err != nil {
			t.Close()
			return nil, err
		}
		s.capture = w
		observers = append(observers, w)
	}

	opts := []dobot.Option{
		dobot.WithLogger(logger.With(zap.String("connection", info))),
		dobot.WithReadTimeout(cfg.Engine.ReadTimeout),
		dobot.WithWriteTimeout(cfg.Engine.WriteTimeout),
	}
	if len(observers) > 0 {
		opts = append(opts, dobot.WithObserver(dobot.MultiObserver(observers...)))
	}
	if cfg.Engine.RateLimit > 0 {
		burst := max(cfg.Engine.RateBurst, 1)
		opts = append(opts, dobot.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.Engine.RateLimit), burst)))
	}

	s.Conn = dobot.Open(t, opts...)
	return s, nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package httpapi exposes a dobot.Conn over HTTP so several clients can
// share one arm. Requests are serialized by the connection.
package httpapi

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

// Server routes HTTP requests to a connection
type Server struct {
	conn    *dobot.Conn
	stats   *dobot.Statistics
	logger  *zap.Logger
	started time.Time
	router  *gin.Engine
}

// Options configures optional endpoints
type Options struct {
	Logger         *zap.Logger
	Statistics     *dobot.Statistics // served at /v1/statistics when set
	MetricsPath    string
	MetricsHandler http.Handler // served at MetricsPath when set
}

// New builds the router for conn
func New(conn *dobot.Conn, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(opts.Logger))

	s := &Server{
		conn:    conn,
		stats:   opts.Statistics,
		logger:  opts.Logger,
		started: time.Now(),
		router:  r,
	}

	r.GET("/healthz", s.health)
	v1 := r.Group("/v1")
	v1.GET("/commands", s.listCommands)
	v1.GET("/commands/:name", s.getCommand)
	v1.POST("/commands/:name", s.invoke)
	v1.POST("/resync", s.resync)
	if s.stats != nil {
		v1.GET("/statistics", s.statistics)
	}
	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(opts.MetricsHandler))
	}
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http bridge listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !s.conn.IsOpen() {
		status = "closed"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"session": s.conn.SessionID().String(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) listCommands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commands": s.conn.Registry().All()})
}

func (s *Server) getCommand(c *gin.Context) {
	spec, ok := s.conn.Registry().Lookup(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown command %q", c.Param("name"))})
		return
	}
	c.JSON(http.StatusOK, spec)
}

// InvokeRequest is the body of POST /v1/commands/:name. Args is either a
// positional array or an object keyed by field name.
type InvokeRequest struct {
	Args      any   `json:"args"`
	Queue     *bool `json:"queue,omitempty"`
	TimeoutMS int   `json:"timeout_ms,omitempty"`
}

// InvokeResponse is the reply of POST /v1/commands/:name
type InvokeResponse struct {
	Command string         `json:"command"`
	ID      uint8          `json:"id"`
	Control uint8          `json:"control"`
	Values  map[string]any `json:"values"`
}

func (s *Server) invoke(c *gin.Context) {
	spec, ok := s.conn.Registry().Lookup(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown command %q", c.Param("name"))})
		return
	}

	var req InvokeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	args, err := coerceArgs(spec.Request, req.Args)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctrl := spec.DefaultControl()
	var opts []dobot.CallOption
	if req.Queue != nil {
		ctrl = spec.Control(*req.Queue)
		opts = append(opts, dobot.WithQueue(*req.Queue))
	}

	ctx := c.Request.Context()
	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	values, err := s.conn.Do(ctx, spec, args, opts...)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "resync": dobot.NeedsResync(err)})
		return
	}

	c.JSON(http.StatusOK, InvokeResponse{
		Command: spec.Name,
		ID:      spec.ID,
		Control: uint8(ctrl),
		Values:  jsonValues(spec.ReplySchema(ctrl), values),
	})
}

type resyncRequest struct {
	QuietMS int `json:"quiet_ms"`
}

func (s *Server) resync(c *gin.Context) {
	req := resyncRequest{QuietMS: 100}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.QuietMS <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quiet_ms must be positive"})
		return
	}

	dropped, err := s.conn.Resync(c.Request.Context(), time.Duration(req.QuietMS)*time.Millisecond)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "dropped": dropped})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dropped": dropped})
}

func (s *Server) statistics(c *gin.Context) {
	snap := s.stats.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"total":            snap.TotalFrames,
		"valid":            snap.ValidFrames,
		"checksum_errors":  snap.ChecksumErrors,
		"framing_errors":   snap.FramingErrors,
		"timeout_errors":   snap.TimeoutErrors,
		"transport_errors": snap.TransportErrors,
		"schema_errors":    snap.SchemaErrors,
		"average_latency":  snap.AverageLatency().String(),
		"max_latency":      snap.LatencyMax.String(),
		"transaction_rate": snap.FrameRate,
		"error_rate":       snap.ErrorRate,
		"since":            snap.StartTime,
	})
}

// coerceArgs converts JSON arguments into values for schema
func coerceArgs(schema dobot.Schema, raw any) ([]any, error) {
	var items []any
	switch v := raw.(type) {
	case nil:
	case []any:
		items = v
	case map[string]any:
		items = make([]any, len(schema))
		for i, p := range schema {
			val, ok := v[p.Name]
			if !ok {
				return nil, fmt.Errorf("%w: missing field %q", dobot.ErrSchemaMismatch, p.Name)
			}
			items[i] = val
		}
		if len(v) != len(schema) {
			return nil, fmt.Errorf("%w: expected fields %s", dobot.ErrSchemaMismatch, schema)
		}
	default:
		return nil, fmt.Errorf("%w: args must be an array or an object", dobot.ErrSchemaMismatch)
	}

	if len(items) != len(schema) {
		return nil, fmt.Errorf("%w: expected %d arguments %s, got %d", dobot.ErrSchemaMismatch, len(schema), schema, len(items))
	}
	values := make([]any, len(items))
	for i, p := range schema {
		v, err := dobot.CoerceValue(p.Kind, items[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", p.Name, err)
		}
		values[i] = v
	}
	return values, nil
}

// jsonValues names decoded values and makes them JSON safe: bytes become
// hex and non-finite floats become null
func jsonValues(schema dobot.Schema, values []any) map[string]any {
	out := dobot.ValueMap(schema, values)
	for k, v := range out {
		switch val := v.(type) {
		case []byte:
			out[k] = hex.EncodeToString(val)
		case float32:
			if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
				out[k] = nil
			}
		}
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dobot.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, dobot.ErrSchemaMismatch):
		return http.StatusBadRequest
	case errors.Is(err, dobot.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, dobot.ErrConnectionClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400:
			logger.Warn("http_request", fields...)
		default:
			logger.Debug("http_request", fields...)
		}
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/dobotlink/internal/httpapi"
	"github.com/Thermoquad/dobotlink/internal/metrics"
	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the arm over an HTTP/JSON bridge",
	Long: `Serve the command registry over HTTP so other programs can drive the arm.

Endpoints:
  GET  /healthz                 connection state and session id
  GET  /v1/commands             command registry
  GET  /v1/commands/{name}      one command
  POST /v1/commands/{name}      invoke ({"args": [...], "queue": true})
  POST /v1/resync               drain the line ({"quiet_ms": 200})
  GET  /v1/statistics           transaction counters
  GET  /metrics                 Prometheus metrics (metrics.enable)

Transactions are serialized on the one connection, so concurrent clients
are answered in turn.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default http.addr, :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	stats := dobot.NewStatistics()
	observers := []dobot.Observer{stats}

	opts := httpapi.Options{
		Logger:     logger,
		Statistics: stats,
	}
	if cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		observers = append(observers, metrics.New(reg))
		opts.MetricsPath = cfg.Metrics.Path
		opts.MetricsHandler = metrics.Handler(reg)
	}

	s, err := openSession(ctx, observers...)
	if err != nil {
		return withExitCode(2, err)
	}
	defer s.Close()

	fmt.Printf("dobotlink - HTTP bridge\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Listening:  %s\n", addr)
	fmt.Printf("Press Ctrl+C to exit\n")

	server := httpapi.New(s.Conn, opts)
	if err := server.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("http bridge stopped", zap.String("addr", addr))
	return nil
}

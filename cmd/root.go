// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/dobotlink/internal/config"
	"github.com/Thermoquad/dobotlink/internal/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// TCP connection flag
	tcpAddr string

	configPath  string
	readTimeout time.Duration
	logLevel    string

	// Set by loadSettings before any command runs
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "dobotlink",
	Short: "Dobot Magician serial protocol client",
	Long: `dobotlink - A CLI tool for driving a Dobot Magician arm over its serial protocol.

Every command is a request/response transaction: one frame is written and the
controller's reply is read and decoded before the next request goes out.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  TCP:       --tcp host:port (ser2net and similar raw serial servers)

Settings are also read from dobotlink.yaml (or --config) and DOBOTLINK_*
environment variables; flags take precedence.

For WebSocket authentication, the password is read from the DOBOTLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	SilenceErrors:     false,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "Raw TCP serial server (host:port)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./dobotlink.yaml)")
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "timeout", 500*time.Millisecond, "Reply timeout per transaction")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// loadSettings merges the config file, environment and flags, then builds
// the logger
func loadSettings(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		loaded.Serial.Port = portName
	}
	if flags.Changed("baud") {
		loaded.Serial.Baud = baudRate
	}
	if flags.Changed("url") {
		loaded.Transport.URL = wsURL
		loaded.Transport.TCP = ""
	}
	if flags.Changed("tcp") {
		loaded.Transport.TCP = tcpAddr
		loaded.Transport.URL = ""
	}
	if flags.Changed("username") {
		loaded.Transport.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.Transport.Insecure = wsNoSSLVerify
	}
	if flags.Changed("timeout") {
		loaded.Engine.ReadTimeout = readTimeout
	}
	if flags.Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := logging.New(loaded.Logging)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = l
	return nil
}

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// Execute runs the root command. Interrupts cancel the command context so
// in-flight transactions end with a timeout instead of leaving the line busy.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

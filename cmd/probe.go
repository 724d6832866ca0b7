// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

var probeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection by reading the device name",
	Long: `Send get_device_name and wait for a valid reply until timeout.

A stale reply left on the line from an earlier session is drained first, so
the probe only succeeds when the controller answers this request.

Exit codes:
  0 - Valid reply received before timeout
  1 - Timeout or invalid reply
  2 - Connection error

Useful for checking the cable, the baud rate or a WebSocket/TCP bridge.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().DurationVar(&probeTimeout, "wait", 5*time.Second, "Total time to wait for a reply")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return withExitCode(2, fmt.Errorf("connection error: %w", err))
	}
	defer s.Close()

	fmt.Printf("dobotlink - Probe\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Timeout: %v\n\n", probeTimeout)

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if dropped, err := s.Resync(ctx, 50*time.Millisecond); err == nil && dropped > 0 {
		fmt.Printf("Drained %d stale bytes\n", dropped)
	}

	start := time.Now()
	for {
		values, err := s.Invoke(ctx, "get_device_name", nil)
		if err == nil {
			fmt.Printf("Device: %q (rtt=%v)\n", values[0], time.Since(start).Round(time.Millisecond))
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, dobot.ErrConnectionClosed) {
			return withExitCode(1, fmt.Errorf("no valid reply: %w", err))
		}
		if errors.Is(err, dobot.ErrTransport) {
			return withExitCode(2, err)
		}

		fmt.Printf("Retrying after: %v\n", err)
		if dobot.NeedsResync(err) {
			_, _ = s.Resync(ctx, 50*time.Millisecond)
		}
	}
}

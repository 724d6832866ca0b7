// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/dobotlink/internal/simulator"
	"github.com/Thermoquad/dobotlink/internal/transport"
	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

var (
	simulateListen string
	simulateSerial string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated arm for testing without hardware",
	Long: `Answer protocol frames like a Dobot Magician would.

The simulator stores every setter's payload and returns it from the
matching getter, tracks the queued command index and updates the pose on
point to point moves. It listens on a TCP address (use --tcp to connect)
or answers on a serial port, for example one end of a virtual null-modem
pair.

  dobotlink simulate --listen 127.0.0.1:8899
  dobotlink --tcp 127.0.0.1:8899 invoke get_pose`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulateListen, "listen", "127.0.0.1:8899", "TCP listen address")
	simulateCmd.Flags().StringVar(&simulateSerial, "serial", "", "Answer on this serial port instead of TCP")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	device := simulator.New(dobot.DefaultRegistry(), logger)

	if simulateSerial != "" {
		port, err := transport.OpenSerial(simulateSerial, cfg.Serial.Baud)
		if err != nil {
			return withExitCode(2, err)
		}
		defer port.Close()

		fmt.Printf("Simulating on %s @ %d baud (Ctrl+C to exit)\n", simulateSerial, cfg.Serial.Baud)
		err = device.Serve(ctx, port)
		fmt.Printf("Answered %d frames\n", device.Frames())
		if err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	}

	l, err := net.Listen("tcp", simulateListen)
	if err != nil {
		return withExitCode(2, err)
	}
	logger.Info("simulator listening", zap.Stringer("addr", l.Addr()))
	fmt.Printf("Simulating on tcp://%s (Ctrl+C to exit)\n", l.Addr())

	err = device.ServeListener(ctx, l)
	fmt.Printf("Answered %d frames\n", device.Frames())
	return err
}

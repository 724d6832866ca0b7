// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trip time with repeated device clock reads",
	Long: `Send get_device_time repeatedly and report the round trip time of each.

The reply carries the controller's millisecond clock, shown as uptime.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 5, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 200*time.Millisecond, "Delay between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	stats := dobot.NewStatistics()

	ctx := cmd.Context()
	s, err := openSession(ctx, stats)
	if err != nil {
		return withExitCode(2, fmt.Errorf("connection error: %w", err))
	}
	defer s.Close()

	fmt.Printf("dobotlink - Ping\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	failCount := 0
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		start := time.Now()
		values, err := s.Invoke(ctx, "get_device_time", nil)
		rtt := time.Since(start)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
			if ctx.Err() != nil {
				break
			}
			if dobot.NeedsResync(err) {
				_, _ = s.Resync(ctx, 50*time.Millisecond)
			}
		} else {
			uptime := uint64(values[0].(uint32))
			fmt.Printf("uptime=%s, rtt=%v\n", formatUptime(uptime), rtt.Round(100*time.Microsecond))
		}

		if i < pingCount {
			select {
			case <-ctx.Done():
			case <-time.After(pingInterval):
			}
		}
	}

	snap := stats.Snapshot()
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d replies, %.0f%% loss\n",
		pingCount, snap.ValidFrames, float64(failCount)/float64(pingCount)*100)
	if snap.ValidFrames > 0 {
		fmt.Printf("rtt avg %v, max %v\n", snap.AverageLatency().Round(100*time.Microsecond), snap.LatencyMax.Round(100*time.Microsecond))
	}

	if failCount > 0 {
		return withExitCode(1, fmt.Errorf("%d of %d pings failed", failCount, pingCount))
	}
	return nil
}

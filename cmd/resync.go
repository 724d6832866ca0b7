// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var resyncQuiet time.Duration

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Drain stale bytes until the line goes quiet",
	Long: `Read and discard input until nothing arrives for --quiet.

Run it after an interrupted session or a timeout, when a late reply may
still be in flight and would otherwise be taken as the reply to the next
request.`,
	Args: cobra.NoArgs,
	RunE: runResync,
}

func init() {
	rootCmd.AddCommand(resyncCmd)
	resyncCmd.Flags().DurationVar(&resyncQuiet, "quiet", 50*time.Millisecond, "Silence that ends the drain")
}

func runResync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return withExitCode(2, err)
	}
	defer s.Close()

	dropped, err := s.Resync(ctx, resyncQuiet)
	if err != nil {
		return err
	}
	fmt.Printf("Discarded %d bytes\n", dropped)
	return nil
}

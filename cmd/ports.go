// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/dobotlink/internal/transport"
)

var portsOutput string

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and flag likely Dobot controllers",
	Long: `Enumerate serial ports on this host. Ports behind the USB-UART bridges fitted
to Dobot controllers (CH340, CP210x) are marked.`,
	Args: cobra.NoArgs,
	// No settings needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().StringVarP(&portsOutput, "output", "o", outputText, "Output format: text, json or yaml")
}

func runPorts(cmd *cobra.Command, args []string) error {
	if err := checkOutput(portsOutput, outputText, outputJSON, outputYAML); err != nil {
		return err
	}

	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}
	if portsOutput != outputText {
		return encodeOutput(os.Stdout, portsOutput, ports)
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		line := p.Name
		if p.IsUSB {
			line += fmt.Sprintf("  USB %s:%s", p.VID, p.PID)
			if p.Product != "" {
				line += "  " + p.Product
			}
		}
		if bridge := p.Bridge(); bridge != "" {
			line += fmt.Sprintf("  [%s, likely Dobot]", bridge)
		}
		fmt.Println(line)
	}
	return nil
}

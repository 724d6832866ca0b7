// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

var commandsOutput string

var commandsCmd = &cobra.Command{
	Use:   "commands [filter]",
	Short: "List the commands of the protocol registry",
	Long: `Print the command registry: name, wire id, direction, queue default and the
request and response layouts.

An optional filter keeps commands whose name contains it. No connection is
opened.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeCommandNames,
	RunE:              runCommands,
}

func init() {
	rootCmd.AddCommand(commandsCmd)
	commandsCmd.Flags().StringVarP(&commandsOutput, "output", "o", outputTable, "Output format: table, json or yaml")
}

func runCommands(cmd *cobra.Command, args []string) error {
	if err := checkOutput(commandsOutput, outputTable, outputJSON, outputYAML); err != nil {
		return err
	}

	filter := ""
	if len(args) == 1 {
		filter = args[0]
	}
	specs := filterCommands(dobot.DefaultRegistry(), filter)
	if len(specs) == 0 {
		return fmt.Errorf("no command matches %q", filter)
	}

	if commandsOutput != outputTable {
		return encodeOutput(os.Stdout, commandsOutput, specs)
	}
	fmt.Println(renderCommandTable(specs))
	fmt.Printf("%d commands\n", len(specs))
	return nil
}

func filterCommands(r *dobot.Registry, filter string) []*dobot.CommandSpec {
	var out []*dobot.CommandSpec
	for _, spec := range r.All() {
		if filter == "" || strings.Contains(spec.Name, filter) {
			out = append(out, spec)
		}
	}
	return out
}

func renderCommandTable(specs []*dobot.CommandSpec) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	dimStyle := cellStyle.Foreground(lipgloss.Color("241"))

	rows := make([][]string, 0, len(specs))
	for _, spec := range specs {
		dir := "read"
		if spec.Write {
			dir = "write"
		}
		queue := ""
		if spec.Queueable {
			queue = "yes"
		}
		rows = append(rows, []string{
			spec.Name,
			fmt.Sprintf("%d", spec.ID),
			dir,
			queue,
			schemaCell(spec.Request),
			schemaCell(spec.Response),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("NAME", "ID", "DIR", "QUEUE", "REQUEST", "RESPONSE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case col >= 4:
				return dimStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

func schemaCell(s dobot.Schema) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Trim(s.String(), "[]")
}

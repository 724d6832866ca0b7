// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/dobotlink/internal/capture"
	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

var (
	captureOutput     string
	captureErrorsOnly bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <file>",
	Short: "Print a CBOR capture journal",
	Long: `Decode a capture journal written with capture.file (or sniff --capture)
and print each transaction with its request and reply frames.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
	// Reading a journal needs no connection settings
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	captureCmd.Flags().BoolVar(&captureErrorsOnly, "errors-only", false, "Only show failed transactions")
}

// recordView is the machine readable form of a capture record
type recordView struct {
	Time     time.Time `json:"time" yaml:"time"`
	Session  string    `json:"session,omitempty" yaml:"session,omitempty"`
	Command  string    `json:"command" yaml:"command"`
	ID       uint8     `json:"id" yaml:"id"`
	Control  uint8     `json:"control" yaml:"control"`
	Request  string    `json:"request" yaml:"request"`
	Response string    `json:"response,omitempty" yaml:"response,omitempty"`
	Duration float64   `json:"duration_ms" yaml:"duration_ms"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func runCapture(cmd *cobra.Command, args []string) error {
	if err := checkOutput(captureOutput, outputText, outputJSON, outputYAML); err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := capture.ReadAll(f)
	if err != nil {
		return err
	}

	if captureErrorsOnly {
		kept := records[:0]
		for _, r := range records {
			if !r.OK() {
				kept = append(kept, r)
			}
		}
		records = kept
	}

	out := cmd.OutOrStdout()
	if captureOutput != outputText {
		views := make([]recordView, len(records))
		for i, r := range records {
			views[i] = newRecordView(r)
		}
		return encodeOutput(out, captureOutput, views)
	}

	registry := dobot.DefaultRegistry()
	failed := 0
	for _, r := range records {
		if !r.OK() {
			failed++
		}
		printRecord(out, registry, r)
	}
	fmt.Fprintf(out, "%d transactions, %d failed\n", len(records), failed)
	return nil
}

func newRecordView(r capture.Record) recordView {
	v := recordView{
		Time:     r.Started(),
		Command:  r.Command,
		ID:       r.ID,
		Control:  r.Control,
		Request:  hex.EncodeToString(r.Request),
		Response: hex.EncodeToString(r.Response),
		Duration: float64(r.Elapsed().Microseconds()) / 1000,
		Error:    r.Error,
	}
	if r.Session != uuid.Nil {
		v.Session = r.Session.String()
	}
	return v
}

// printRecord writes the decoded request and reply frames of a record
func printRecord(w io.Writer, r *dobot.Registry, rec capture.Record) {
	status := "ok"
	if !rec.OK() {
		status = "\033[1;31m" + rec.Error + "\033[0m"
	}
	fmt.Fprintf(w, "%s %s %v %s\n", rec.Started().Format("2006-01-02 15:04:05.000"), rec.Command, rec.Elapsed(), status)

	for _, raw := range [][]byte{rec.Request, rec.Response} {
		if len(raw) == 0 {
			continue
		}
		frame, err := dobot.ParseFrame(raw)
		if err != nil {
			fmt.Fprintf(w, "  %v: %s\n", err, dobot.FormatHex(raw))
			continue
		}
		fmt.Fprint(w, "  "+dobot.FormatFrame(r, &dobot.TimedFrame{Frame: frame, Timestamp: rec.Started()}))
	}
}

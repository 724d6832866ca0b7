// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/dobotlink/internal/capture"
	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	showRaw       bool
	sniffCapture  string
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Passively decode frames on the line and detect errors",
	Long: `Continuously decode Dobot frames as they arrive without sending anything.

Attach it to a tap on the controller's serial line (or to a bridge that
mirrors traffic) to watch another host drive the arm. Each frame is checked
against the command registry and problems are reported:
  - Checksum errors and broken framing
  - Unknown command keys
  - Payloads that match neither the request nor the reply layout
  - NaN or infinite float fields

By default, only errors are displayed. Use --show-all to display valid frames
too, and --capture to journal every frame for later inspection.`,
	Args: cobra.NoArgs,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	sniffCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	sniffCmd.Flags().BoolVar(&useTUI, "tui", false, "Use terminal UI")
	sniffCmd.Flags().BoolVar(&showRaw, "raw", false, "Print raw bytes of each frame")
	sniffCmd.Flags().StringVar(&sniffCapture, "capture", "", "Append every frame to this CBOR capture file")
}

// sniffEvent is one decoder outcome
type sniffEvent struct {
	frame            *dobot.TimedFrame
	raw              []byte
	decodeErr        error
	validationErrors []dobot.ValidationError
}

// sniffer turns a byte stream into sniff events, ignoring decode errors
// until the first valid frame has been seen
type sniffer struct {
	t        dobot.Transport
	registry *dobot.Registry
	decoder  *dobot.Decoder

	synchronized           bool
	invalidBytesBeforeSync int
}

func newSniffer(t dobot.Transport) *sniffer {
	return &sniffer{t: t, registry: dobot.DefaultRegistry(), decoder: dobot.NewDecoder()}
}

// run reads until ctx ends or the transport fails. onSync is called once
// with the number of bytes skipped before the first frame.
func (s *sniffer) run(ctx context.Context, onSync func(int), onEvent func(sniffEvent)) error {
	if err := s.t.SetReadTimeout(100 * time.Millisecond); err != nil {
		return err
	}

	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := s.t.Read(buf)
		for i := 0; i < n; i++ {
			frame, decodeErr := s.decoder.DecodeByte(buf[i])
			switch {
			case decodeErr != nil:
				if s.synchronized {
					onEvent(sniffEvent{decodeErr: decodeErr})
				} else {
					s.invalidBytesBeforeSync++
				}
			case frame != nil:
				if !s.synchronized {
					s.synchronized = true
					onSync(s.invalidBytesBeforeSync)
				}
				raw, _ := dobot.EncodeFrame(frame.Frame)
				onEvent(sniffEvent{
					frame:            frame,
					raw:              raw,
					validationErrors: dobot.ValidateFrame(s.registry, &frame.Frame),
				})
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func runSniff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	t, connInfo, err := OpenTransport(ctx)
	if err != nil {
		return withExitCode(2, err)
	}
	defer t.Close()

	var journal *capture.Writer
	if sniffCapture != "" {
		journal, err = capture.Create(sniffCapture, logger)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	if useTUI {
		return runSniffTUI(ctx, t, connInfo, journal)
	}
	return runSniffText(ctx, t, connInfo, journal)
}

// journalFrame records a sniffed frame as a one-sided transaction
func journalFrame(w *capture.Writer, r *dobot.Registry, ev sniffEvent) {
	if w == nil || ev.frame == nil {
		return
	}
	rec := capture.Record{
		Time:    ev.frame.Timestamp.UnixNano(),
		Command: dobot.FormatCommandName(r, ev.frame.Key()),
		ID:      ev.frame.ID,
		Control: uint8(ev.frame.Control),
		Request: ev.raw,
	}
	if len(ev.validationErrors) > 0 {
		rec.Error = ev.validationErrors[0].Error()
	}
	if err := w.Write(rec); err != nil {
		logger.Warn("capture write failed", zap.Error(err))
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DISCARDED <<<\n\n")
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(r *dobot.Registry, f *dobot.TimedFrame, errs []dobot.ValidationError) {
	timestamp := f.Timestamp.Format("15:04:05.000")
	name := dobot.FormatCommandName(r, f.Key())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (%s)\n", timestamp, name, f.Key())
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")

	for i, err := range errs {
		switch err.Type {
		case dobot.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if received, ok := err.Details["length"].(int); ok {
				fmt.Printf("    Length: received=%d bytes\n", received)
			}
		case dobot.AnomalyInvalidFloat:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		case dobot.AnomalyUnknownCommand:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			fmt.Printf("    Payload: %s\n", dobot.FormatHex(f.Payload))
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// runSniffText prints events as they arrive and statistics periodically
func runSniffText(ctx context.Context, t dobot.Transport, connInfo string, journal *capture.Writer) error {
	fmt.Printf("dobotlink - Sniffer\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	s := newSniffer(t)
	stats := dobot.NewStatistics()
	events := make(chan sniffEvent, 64)
	syncs := make(chan int, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.run(ctx,
			func(skipped int) { syncs <- skipped },
			func(ev sniffEvent) { events <- ev })
		close(events)
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case skipped := <-syncs:
			if skipped > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", skipped)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}

		case ev, ok := <-events:
			if !ok {
				err := <-done
				fmt.Println()
				fmt.Print(stats.String())
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			if ev.decodeErr != nil {
				stats.Update(nil, ev.decodeErr, nil)
				printDecodeError(ev.decodeErr)
				continue
			}

			stats.Update(&ev.frame.Frame, nil, ev.validationErrors)
			journalFrame(journal, s.registry, ev)
			switch {
			case len(ev.validationErrors) > 0:
				printValidationErrors(s.registry, ev.frame, ev.validationErrors)
			case showAll:
				fmt.Print(dobot.FormatFrame(s.registry, ev.frame))
			}
			if showRaw {
				fmt.Printf("  Raw: %s\n", dobot.FormatHex(ev.raw))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// runSniffTUI feeds events into the bubbletea sniffer view
func runSniffTUI(ctx context.Context, t dobot.Transport, connInfo string, journal *capture.Writer) error {
	m := initialSniffModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	s := newSniffer(t)
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		err := s.run(readCtx,
			func(skipped int) { p.Send(syncMsg{invalidBytes: skipped}) },
			func(ev sniffEvent) {
				journalFrame(journal, s.registry, ev)
				p.Send(sniffDataMsg(ev))
			})
		if err != nil && readCtx.Err() == nil {
			p.Send(connectionLostMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

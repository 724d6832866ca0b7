// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive TUI for monitoring and driving the arm",
	Long: `Monitor and drive a Dobot Magician from an interactive terminal UI.

The arm is polled for its pose, alarms, queue index and clock. Any command
in the registry can be picked from the list and invoked with arguments.

Features:
  - Live pose, joint angles, alarms and queue index
  - Command browser with filtering (/)
  - Quick actions: home, clear alarms, start/stop queue, resync
  - Transaction statistics and event log
  - Automatic reconnection on connection loss

Tab switches between the command list and the argument line. Enter on a
command moves to its argument line, Enter again sends it.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "State polling interval")
}

// connectionManager owns the session and replaces it after a loss
type connectionManager struct {
	mu    sync.RWMutex
	sess  *session
	stats *dobot.Statistics
}

func (cm *connectionManager) get() *session {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.sess
}

func (cm *connectionManager) set(s *session) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.sess = s
}

func (cm *connectionManager) close() {
	if s := cm.get(); s != nil {
		if err := s.Close(); err != nil {
			logger.Debug("close session", zap.Error(err))
		}
	}
}

// reconnectCmd reopens the session with exponential backoff. It yields no
// message if ctx ends first.
func (cm *connectionManager) reconnectCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		cm.close()

		backoff := 1 * time.Second
		maxBackoff := 30 * time.Second

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}

			s, err := openSession(ctx, cm.stats)
			if err == nil {
				cm.set(s)
				return reconnectedMsg{connInfo: s.info}
			}
			logger.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// connectionLost reports whether err means the transport is gone
func connectionLost(err error) bool {
	return errors.Is(err, dobot.ErrTransport) || errors.Is(err, dobot.ErrConnectionClosed)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cm := &connectionManager{stats: dobot.NewStatistics()}
	s, err := openSession(ctx, cm.stats)
	if err != nil {
		return withExitCode(2, err)
	}
	cm.set(s)
	defer cm.close()

	m := initialWatchModel(ctx, cm, s.info, watchInterval)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

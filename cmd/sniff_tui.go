// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Last robot state seen on the line
type sniffedState struct {
	timestamp time.Time
	pose      []any // x, y, z, r, joint0..joint3
	uptime    uint64
	hasUptime bool
	alarms    []byte
	hasAlarms bool
}

// sniffModel is the bubbletea model of the passive sniffer
type sniffModel struct {
	connInfo      string
	statsInterval int
	showAll       bool
	registry      *dobot.Registry
	stats         *dobot.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	width         int
	height        int
	quitting      bool
	lostErr       error
	last          *sniffedState
}

// Messages
type tickMsg time.Time
type sniffDataMsg sniffEvent
type syncMsg struct {
	invalidBytes int
}
type connectionLostMsg struct {
	err error
}

func initialSniffModel(connInfo string, statsInterval int, showAll bool) sniffModel {
	return sniffModel{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		registry:      dobot.DefaultRegistry(),
		stats:         dobot.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m sniffModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m sniffModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connectionLostMsg:
		m.lostErr = msg.err
		m.addLogEntry(fmt.Sprintf("CONNECTION LOST: %v", msg.err), true)

	case sniffDataMsg:
		if msg.decodeErr != nil {
			m.stats.Update(nil, msg.decodeErr, nil)
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
			break
		}
		if msg.frame == nil {
			break
		}

		m.stats.Update(&msg.frame.Frame, nil, msg.validationErrors)
		m.trackState(&msg.frame.Frame)

		name := dobot.FormatCommandName(m.registry, msg.frame.Key())
		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s [%d bytes] (valid)", name, len(msg.frame.Payload)), false)
		}
	}

	return m, nil
}

func (m *sniffModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// trackState keeps the latest pose, clock and alarms carried by replies.
// Requests for these commands have empty payloads, so any frame whose
// payload fits the reply layout is a reply.
func (m *sniffModel) trackState(f *dobot.Frame) {
	if f.IsWrite() {
		return
	}
	spec, ok := m.registry.LookupKey(f.ID, false)
	if !ok || len(f.Payload) == 0 || len(f.Payload) < spec.Response.MinSize() {
		return
	}
	values, err := dobot.Decode(f.Payload, spec.Response)
	if err != nil {
		return
	}

	if m.last == nil {
		m.last = &sniffedState{}
	}
	m.last.timestamp = time.Now()

	switch f.ID {
	case dobot.CmdPose:
		m.last.pose = values
	case dobot.CmdDeviceTime:
		if ms, ok := values[0].(uint32); ok {
			m.last.uptime = uint64(ms)
			m.last.hasUptime = true
		}
	case dobot.CmdAlarmsState:
		if bitmap, ok := values[0].([]byte); ok {
			m.last.alarms = bitmap
			m.last.hasAlarms = true
		}
	}
}

func (m sniffModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("DOBOTLINK - SNIFFER"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.lostErr != nil:
		s.WriteString(errorStyle.Render("✗ Connection lost"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	c := m.stats.Snapshot()
	framingErrors := c.ChecksumErrors + c.FramingErrors
	totalErrors := framingErrors + c.MalformedFrames + c.AnomalousValues
	var validPercent, errorPercent float64
	if c.TotalFrames > 0 {
		validPercent = float64(c.ValidFrames) * 100.0 / float64(c.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(c.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", c.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", c.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if framingErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", c.ChecksumErrors)),
			statsLabelStyle.Render("Framing Errors:"), errorStyle.Render(fmt.Sprintf("%d", c.FramingErrors)),
		))
	}

	if c.MalformedFrames > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", c.MalformedFrames)),
			headerStyle.Render("unknown commands"), c.UnknownCommands,
			headerStyle.Render("length mismatches"), c.LengthMismatches,
		))
	}

	if c.AnomalousValues > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Non-finite floats:"), warningStyle.Render(fmt.Sprintf("%d", c.AnomalousValues)),
		))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate))
	if c.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", c.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", c.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Robot state section (only shown once a reply carrying it was seen)
	if m.last != nil {
		s.WriteString(statsLabelStyle.Render("Latest State:"))
		s.WriteString("\n")

		stateContent := strings.Builder{}
		if len(m.last.pose) >= 8 {
			stateContent.WriteString(fmt.Sprintf("%s x=%s y=%s z=%s r=%s\n",
				statsLabelStyle.Render("Pose:"),
				statsValueStyle.Render(dobot.FormatValue(m.last.pose[0])),
				statsValueStyle.Render(dobot.FormatValue(m.last.pose[1])),
				statsValueStyle.Render(dobot.FormatValue(m.last.pose[2])),
				statsValueStyle.Render(dobot.FormatValue(m.last.pose[3])),
			))
			stateContent.WriteString(fmt.Sprintf("%s %s %s %s %s\n",
				statsLabelStyle.Render("Joints:"),
				dobot.FormatValue(m.last.pose[4]), dobot.FormatValue(m.last.pose[5]),
				dobot.FormatValue(m.last.pose[6]), dobot.FormatValue(m.last.pose[7]),
			))
		}
		if m.last.hasUptime {
			stateContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(formatUptime(m.last.uptime)),
			))
		}
		if m.last.hasAlarms {
			alarms := formatAlarms(m.last.alarms)
			style := statsValueStyle
			if len(activeAlarms(m.last.alarms)) > 0 {
				style = errorStyle
			}
			stateContent.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Alarms:"), style.Render(alarms)))
		}

		s.WriteString(boxStyle.Render(strings.TrimSuffix(stateContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 15
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

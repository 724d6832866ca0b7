// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/dobotlink/pkg/dobot"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const watchResyncQuiet = 200 * time.Millisecond

// Focus states
const (
	focusCommandList = iota
	focusArgsInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// commandItem is a registry entry in the command list
type commandItem struct {
	spec *dobot.CommandSpec
}

// Implement list.Item interface
func (c commandItem) Title() string { return c.spec.Name }
func (c commandItem) Description() string {
	if len(c.spec.Request) == 0 {
		return c.spec.Key().String()
	}
	return fmt.Sprintf("%s  %s", c.spec.Key(), c.spec.Request)
}
func (c commandItem) FilterValue() string { return c.spec.Name }

// robotState is the result of one poll
type robotState struct {
	pose       []any // x, y, z, r, joint0..joint3
	alarms     []byte
	queueIndex uint64
	uptime     uint64
	updated    time.Time
}

// watchKeyMap binds the quick actions
type watchKeyMap struct {
	Home        key.Binding
	ClearAlarms key.Binding
	StartQueue  key.Binding
	StopQueue   key.Binding
	ForceStop   key.Binding
	Resync      key.Binding
	Switch      key.Binding
	Send        key.Binding
	Back        key.Binding
	Quit        key.Binding
}

func newWatchKeyMap() watchKeyMap {
	return watchKeyMap{
		Home:        key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "home")),
		ClearAlarms: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "clear alarms")),
		StartQueue:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start queue")),
		StopQueue:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "stop queue")),
		ForceStop:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "force stop")),
		Resync:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resync")),
		Switch:      key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch")),
		Send:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select/send")),
		Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Home, k.ClearAlarms, k.StartQueue, k.StopQueue, k.ForceStop, k.Resync, k.Switch, k.Quit}
}

func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Home, k.ClearAlarms, k.Resync},
		{k.StartQueue, k.StopQueue, k.ForceStop},
		{k.Switch, k.Send, k.Back, k.Quit},
	}
}

// watchModel is the Bubble Tea model for the watch TUI
type watchModel struct {
	ctx      context.Context
	connMgr  *connectionManager
	connInfo string
	registry *dobot.Registry
	interval time.Duration

	// Command browser
	commands     list.Model
	argsInput    textinput.Model
	selected     *dobot.CommandSpec
	focusedField int
	keys         watchKeyMap
	help         help.Model

	// Monitoring
	stats         *dobot.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	state         *robotState
	polling       bool

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type watchTickMsg time.Time

type pollMsg struct {
	state robotState
	err   error
}

type invokeResultMsg struct {
	spec   *dobot.CommandSpec
	values []any
	err    error
}

type resyncResultMsg struct {
	discarded int
	err       error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialWatchModel(ctx context.Context, connMgr *connectionManager, connInfo string, interval time.Duration) watchModel {
	registry := connMgr.get().Registry()

	items := make([]list.Item, 0, registry.Len())
	for _, spec := range registry.All() {
		items = append(items, commandItem{spec: spec})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	commands := list.New(items, delegate, 36, 14)
	commands.Title = "Commands"
	commands.SetShowStatusBar(false)
	commands.SetShowHelp(false)
	commands.DisableQuitKeybindings()

	ti := textinput.New()
	ti.Placeholder = "arguments"
	ti.CharLimit = 256
	ti.Width = 40

	return watchModel{
		ctx:           ctx,
		connMgr:       connMgr,
		connInfo:      connInfo,
		registry:      registry,
		interval:      interval,
		commands:      commands,
		argsInput:     ti,
		focusedField:  focusCommandList,
		keys:          newWatchKeyMap(),
		help:          help.New(),
		stats:         connMgr.stats,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), watchTickCmd(m.interval))
}

func watchTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.commands.SetHeight(max(msg.Height-22, 6))

	case watchTickMsg:
		m.stats.CalculateRates()
		var cmd tea.Cmd
		if !m.polling && !m.connectionLost {
			m.polling = true
			cmd = m.pollCmd()
		}
		return m, tea.Batch(cmd, watchTickCmd(m.interval))

	case pollMsg:
		m.polling = false
		if msg.err != nil {
			return m.handleError("poll", msg.err)
		}
		m.state = &msg.state

	case invokeResultMsg:
		if msg.err != nil {
			return m.handleError(msg.spec.Name, msg.err)
		}
		schema := msg.spec.ReplySchema(msg.spec.DefaultControl())
		if len(msg.values) == 0 {
			m.addLogEntry(fmt.Sprintf("%s ok", msg.spec.Name), false)
		} else {
			m.addLogEntry(fmt.Sprintf("%s → %s", msg.spec.Name, dobot.FormatValues(schema, msg.values)), false)
		}

	case resyncResultMsg:
		if msg.err != nil {
			return m.handleError("resync", msg.err)
		}
		m.addLogEntry(fmt.Sprintf("Resynchronized, discarded %d bytes", msg.discarded), false)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)
		return m, m.connMgr.reconnectCmd(m.ctx)

	case reconnectedMsg:
		m.connectionLost = false
		m.polling = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusArgsInput {
		m.argsInput, cmd = m.argsInput.Update(msg)
	} else {
		m.commands, cmd = m.commands.Update(msg)
	}
	return m, cmd
}

func (m watchModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// Typing into the argument line or the list filter
	if m.focusedField == focusArgsInput {
		switch {
		case key.Matches(msg, m.keys.Send):
			return m.sendSelected()
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Switch):
			m.focusCommands()
			return m, nil
		}
		var cmd tea.Cmd
		m.argsInput, cmd = m.argsInput.Update(msg)
		return m, cmd
	}
	if m.commands.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.commands, cmd = m.commands.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Send), key.Matches(msg, m.keys.Switch):
		if item, ok := m.commands.SelectedItem().(commandItem); ok {
			m.selected = item.spec
			m.argsInput.SetValue("")
			m.argsInput.Placeholder = m.selected.Request.String()
			m.focusedField = focusArgsInput
			return m, m.argsInput.Focus()
		}
		return m, nil
	case key.Matches(msg, m.keys.Home):
		return m.quickAction("set_homing_command", "0")
	case key.Matches(msg, m.keys.ClearAlarms):
		return m.quickAction("clear_alarms_state")
	case key.Matches(msg, m.keys.StartQueue):
		return m.quickAction("start_queue")
	case key.Matches(msg, m.keys.StopQueue):
		return m.quickAction("stop_queue")
	case key.Matches(msg, m.keys.ForceStop):
		return m.quickAction("force_stop_queue")
	case key.Matches(msg, m.keys.Resync):
		if m.connectionLost {
			return m, nil
		}
		return m, m.resyncCmd()
	}

	var cmd tea.Cmd
	m.commands, cmd = m.commands.Update(msg)
	return m, cmd
}

func (m *watchModel) focusCommands() {
	m.focusedField = focusCommandList
	m.argsInput.Blur()
}

// sendSelected parses the argument line and invokes the selected command
func (m watchModel) sendSelected() (tea.Model, tea.Cmd) {
	if m.selected == nil {
		return m, nil
	}
	args := strings.Fields(m.argsInput.Value())
	m.focusCommands()
	return m.invoke(m.selected, args)
}

func (m watchModel) quickAction(name string, args ...string) (tea.Model, tea.Cmd) {
	spec, err := m.registry.Command(name)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	return m.invoke(spec, args)
}

func (m watchModel) invoke(spec *dobot.CommandSpec, args []string) (tea.Model, tea.Cmd) {
	// Don't allow commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}
	values, err := dobot.ParseValues(spec.Request, args)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", spec.Name, err), true)
		return m, nil
	}
	return m, m.invokeCmd(spec, values)
}

func (m *watchModel) handleError(what string, err error) (tea.Model, tea.Cmd) {
	if connectionLost(err) {
		if m.connectionLost {
			return *m, nil
		}
		return m.Update(connectionLostMsg{err: err})
	}
	m.addLogEntry(fmt.Sprintf("%s: %v", what, err), true)
	return *m, nil
}

func (m *watchModel) addLogEntry(message string, isError bool) {
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

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// pollCmd reads pose, alarms, queue index and clock in one pass
func (m watchModel) pollCmd() tea.Cmd {
	s := m.connMgr.get()
	ctx := m.ctx
	return func() tea.Msg {
		st := robotState{updated: time.Now()}

		pose, err := s.Invoke(ctx, "get_pose", nil)
		if err != nil {
			return pollMsg{err: err}
		}
		st.pose = pose

		alarms, err := s.Invoke(ctx, "get_alarms_state", nil)
		if err != nil {
			return pollMsg{err: err}
		}
		st.alarms, _ = alarms[0].([]byte)

		index, err := s.Invoke(ctx, "get_current_queue_index", nil)
		if err != nil {
			return pollMsg{err: err}
		}
		st.queueIndex, _ = index[0].(uint64)

		clock, err := s.Invoke(ctx, "get_device_time", nil)
		if err != nil {
			return pollMsg{err: err}
		}
		if ms, ok := clock[0].(uint32); ok {
			st.uptime = uint64(ms)
		}

		return pollMsg{state: st}
	}
}

func (m watchModel) invokeCmd(spec *dobot.CommandSpec, args []any) tea.Cmd {
	s := m.connMgr.get()
	ctx := m.ctx
	return func() tea.Msg {
		values, err := s.Do(ctx, spec, args)
		return invokeResultMsg{spec: spec, values: values, err: err}
	}
}

func (m watchModel) resyncCmd() tea.Cmd {
	s := m.connMgr.get()
	ctx := m.ctx
	return func() tea.Msg {
		n, err := s.Resync(ctx, watchResyncQuiet)
		return resyncResultMsg{discarded: n, err: err}
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("DOBOTLINK WATCH"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | session %s", connStatus, m.connMgr.get().SessionID().String()[:8])))
	s.WriteString("\n\n")

	// Layout: left panel (commands) | right panel (state)
	leftWidth := 36
	rightWidth := max(m.width-leftWidth-6, 20)

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusCommandList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	commandPanel := listStyle.Render(m.commands.View())
	statePanel := boxStyle.Width(rightWidth).Render(m.renderState(labelStyle, valueStyle, errorStyle, headerStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, commandPanel, " ", statePanel))
	s.WriteString("\n")

	// Argument line
	argsStyle := boxStyle.Width(m.width - 4)
	if m.focusedField == focusArgsInput {
		argsStyle = focusedBoxStyle.Width(m.width - 4)
	}
	name := "(select a command)"
	if m.selected != nil {
		name = m.selected.Name
	}
	s.WriteString(argsStyle.Render(fmt.Sprintf("%s %s", labelStyle.Render(name), m.argsInput.View())))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))
	s.WriteString("\n")

	s.WriteString(m.help.View(m.keys))
	return s.String()
}

func (m watchModel) renderState(labelStyle, valueStyle, errorStyle, headerStyle lipgloss.Style) string {
	if m.state == nil {
		return headerStyle.Render("Waiting for first poll...")
	}
	st := m.state

	var s strings.Builder
	if len(st.pose) >= 8 {
		s.WriteString(labelStyle.Render("POSE"))
		s.WriteString("\n")
		for i, axis := range []string{"x", "y", "z", "r"} {
			s.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(axis+":"), valueStyle.Render(dobot.FormatValue(st.pose[i]))))
		}
		s.WriteString(labelStyle.Render("JOINTS"))
		s.WriteString("\n")
		for i := 0; i < 4; i++ {
			s.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(fmt.Sprintf("j%d:", i+1)), valueStyle.Render(dobot.FormatValue(st.pose[4+i]))))
		}
	}

	alarmStyle := valueStyle
	if len(activeAlarms(st.alarms)) > 0 {
		alarmStyle = errorStyle
	}
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Alarms:"), alarmStyle.Render(formatAlarms(st.alarms))))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Queue index:"), valueStyle.Render(fmt.Sprintf("%d", st.queueIndex))))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Uptime:"), valueStyle.Render(formatUptime(st.uptime))))
	s.WriteString(headerStyle.Render(fmt.Sprintf("updated %s", st.updated.Format("15:04:05"))))
	return s.String()
}

func (m watchModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	c := m.stats.Snapshot()
	var errorPercent float64
	errors := c.TotalFrames - c.ValidFrames
	if c.TotalFrames > 0 {
		errorPercent = float64(errors) * 100.0 / float64(c.TotalFrames)
	}

	errorText := valueStyle.Render("0.0%")
	if errors > 0 {
		errorText = errorStyle.Render(fmt.Sprintf("%.1f%% (%d timeouts)", errorPercent, c.TimeoutErrors))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Transactions:"), valueStyle.Render(fmt.Sprintf("%d", c.TotalFrames)),
		labelStyle.Render("Errors:"), errorText,
		labelStyle.Render("Latency:"), valueStyle.Render(fmt.Sprintf("%v avg / %v max",
			c.AverageLatency().Round(time.Microsecond), c.LatencyMax.Round(time.Microsecond))),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f tx/s", c.FrameRate)),
	)
	return boxStyle.Width(m.width - 4).Render(content)
}

func (m watchModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 6
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

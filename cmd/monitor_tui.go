// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/Thermoquad/joystat/pkg/joybus/sim"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Log pane entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Result of one bus transaction
type transaction struct {
	timestamp time.Time
	command   []byte
	report    []byte
	err       error
	adHoc     bool
}

// Monitor TUI model
type monitorModel struct {
	session  *busSession
	stats    *joybus.Statistics
	command  []byte
	interval time.Duration

	input   textinput.Model
	pending [][]byte
	paused  bool

	last          *transaction
	lastState     *sim.State
	log           []logEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
	fatal    error
}

// Messages
type pollTickMsg time.Time
type statsTickMsg time.Time
type transactionMsg transaction
type logMsg logEntry

func newMonitorModel(session *busSession, stats *joybus.Statistics, command []byte, interval time.Duration) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "hex bytes, e.g. 40 03 01"
	ti.Prompt = "cmd> "
	ti.CharLimit = 3 * joybus.MaxCommandLength
	ti.Width = 30

	return monitorModel{
		session:       session,
		stats:         stats,
		command:       command,
		interval:      interval,
		input:         ti,
		log:           make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		pollTickCmd(m.interval),
		statsTickCmd(),
		textinput.Blink,
	)
}

func pollTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func statsTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

// transactCmd runs one SendAndReceive off the event loop. Only one is ever
// outstanding because the next poll is scheduled from its result.
func transactCmd(session *busSession, command []byte, adHoc bool) tea.Cmd {
	return func() tea.Msg {
		report, err := session.tr.SendAndReceive(session.pin, command)
		return transactionMsg{
			timestamp: time.Now(),
			command:   command,
			report:    report,
			err:       err,
			adHoc:     adHoc,
		}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case statsTickMsg:
		m.stats.CalculateRates()
		return m, statsTickCmd()

	case pollTickMsg:
		if m.fatal != nil {
			return m, nil
		}
		if len(m.pending) > 0 {
			next := m.pending[0]
			m.pending = m.pending[1:]
			return m, transactCmd(m.session, next, true)
		}
		if m.paused {
			return m, pollTickCmd(m.interval)
		}
		return m, transactCmd(m.session, m.command, false)

	case transactionMsg:
		t := transaction(msg)
		m.record(&t)
		if m.fatal != nil {
			return m, nil
		}
		return m, pollTickCmd(m.interval)

	case logMsg:
		m.addLogEntry(msg.message, msg.isError)
	}

	return m, nil
}

func (m monitorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.input.Focused() {
		switch msg.String() {
		case "tab", "esc":
			m.input.Blur()
			return m, nil
		case "enter":
			m.submitInput()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		return m, m.input.Focus()
	case "p":
		m.paused = !m.paused
		if m.paused {
			m.addLogEntry("Polling paused", false)
		} else {
			m.addLogEntry("Polling resumed", false)
		}
	case "r":
		m.stats.Reset()
		m.addLogEntry("Statistics reset", false)
	case "i":
		m.pending = append(m.pending, []byte{sim.CmdIdentity})
	case "o":
		m.pending = append(m.pending, []byte{sim.CmdOrigin})
	}
	return m, nil
}

// submitInput queues the typed command for the next bus slot
func (m *monitorModel) submitInput() {
	text := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if text == "" {
		return
	}

	command, err := parseHexBytes(text)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	if len(command) > joybus.MaxCommandLength {
		m.addLogEntry(fmt.Sprintf("%v: %d bytes", joybus.ErrCommandTooLong, len(command)), true)
		return
	}
	m.pending = append(m.pending, command)
}

func (m *monitorModel) record(t *transaction) {
	m.last = t

	if t.err != nil {
		m.addLogEntry(fmt.Sprintf("CMD %s: %v", joybus.FormatHex(t.command), t.err), true)
		if errors.Is(t.err, joybus.ErrConfigure) {
			m.fatal = t.err
		}
		return
	}

	if state, ok := sim.ParseState(t.report); ok {
		m.lastState = &state
	}
	if t.adHoc {
		m.addLogEntry(strings.TrimSpace(joybus.FormatReport(t.timestamp, t.command, t.report)), false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.log = append(m.log, entry)

	// Keep only last N entries
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("JOYSTAT - MONITOR"))
	s.WriteString("\n")
	mode := "Polling"
	if m.paused {
		mode = "Paused"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Pin %d | %s %s every %v | tab: command, q: quit",
		m.session.info, m.session.pin, mode, joybus.FormatHex(m.command), m.interval)))
	s.WriteString("\n\n")

	if m.fatal != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Bus unusable: %v", m.fatal)))
		s.WriteString("\n\n")
	}

	s.WriteString(boxStyle.Render(m.renderReport()))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.renderStats()))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n\n")

	// Log pane fills what is left
	s.WriteString(labelStyle.Render("Log:"))
	s.WriteString("\n")
	available := m.height - strings.Count(s.String(), "\n") - 1
	if available < 1 {
		available = 1
	}
	start := 0
	if len(m.log) > available {
		start = len(m.log) - available
	}
	for _, entry := range m.log[start:] {
		line := fmt.Sprintf("[%s] %s", entry.timestamp.Format("15:04:05.000"), entry.message)
		if entry.isError {
			s.WriteString(errorStyle.Render(line))
		} else {
			s.WriteString(headerStyle.Render(line))
		}
		s.WriteString("\n")
	}

	return s.String()
}

func (m monitorModel) renderReport() string {
	var b strings.Builder

	if m.last == nil {
		b.WriteString(warningStyle.Render("Waiting for first transaction..."))
		return b.String()
	}

	t := m.last
	status := valueStyle.Render(fmt.Sprintf("%d bytes", len(t.report)))
	switch {
	case t.err != nil:
		status = errorStyle.Render("error")
	case len(t.report) == 0:
		status = warningStyle.Render("no report")
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Command:"), valueStyle.Render(joybus.FormatHex(t.command)),
		labelStyle.Render("Report:"), status,
	))
	b.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Bytes:"), joybus.FormatHex(t.report)))

	if m.lastState != nil {
		st := m.lastState
		pressed := strings.Join(st.Pressed(), " ")
		if pressed == "" {
			pressed = "-"
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Buttons:"), valueStyle.Render(pressed)))
		b.WriteString(fmt.Sprintf("%s %3d,%3d   %s %3d,%3d   %s %3d / %3d",
			labelStyle.Render("Stick:"), st.StickX, st.StickY,
			labelStyle.Render("C-Stick:"), st.CStickX, st.CStickY,
			labelStyle.Render("L/R:"), st.TriggerL, st.TriggerR,
		))
	}
	return b.String()
}

func (m monitorModel) renderStats() string {
	snap := m.stats.Snapshot()

	var validPercent float64
	if snap.TotalTransactions > 0 {
		decoded := snap.ShortReports + snap.IdentityReports + snap.StateReports
		validPercent = float64(decoded) * 100.0 / float64(snap.TotalTransactions)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", snap.TotalTransactions)),
		labelStyle.Render("Decoded:"), valueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		labelStyle.Render("Latency:"), valueStyle.Render(snap.LastLatency.Round(time.Microsecond).String()),
	))
	b.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d",
		labelStyle.Render("1-byte:"), snap.ShortReports,
		labelStyle.Render("3-byte:"), snap.IdentityReports,
		labelStyle.Render("8-byte:"), snap.StateReports,
	))

	if snap.UnknownReports > 0 || snap.Timeouts > 0 || snap.Errors > 0 {
		b.WriteString(fmt.Sprintf("\n%s %s   %s %s   %s %s",
			labelStyle.Render("Unknown:"), warningStyle.Render(fmt.Sprintf("%d", snap.UnknownReports)),
			labelStyle.Render("No response:"), warningStyle.Render(fmt.Sprintf("%d", snap.Timeouts)),
			labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", snap.Errors)),
		))
	}

	rateStyle := valueStyle
	if snap.ErrorRate > 0 {
		rateStyle = errorStyle
	}
	b.WriteString(fmt.Sprintf("\n%s %s   %s %s",
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f tx/s", snap.TransactionRate)),
		labelStyle.Render("Failures:"), rateStyle.Render(fmt.Sprintf("%.1f /s", snap.ErrorRate)),
	))
	return b.String()
}

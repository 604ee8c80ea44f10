// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// apidState is the latest view of one APID
type apidState struct {
	packets  uint64
	lastSeq  uint16
	gaps     uint64
	errors   uint64
	variant  ccsds.Variant
	service  string
	lastSeen time.Time
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *ccsds.Statistics
	observe       func(*packetEvent)
	apids         map[uint16]*apidState
	apidTable     table.Model
	errorLog      []errorLogEntry
	maxLogEntries int
	ended         bool
	endErr        error
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time

func newAPIDTable() table.Model {
	columns := []table.Column{
		{Title: "APID", Width: 6},
		{Title: "Packets", Width: 9},
		{Title: "Seq", Width: 6},
		{Title: "Gaps", Width: 6},
		{Title: "Errors", Width: 7},
		{Title: "Header", Width: 7},
		{Title: "Service", Width: 8},
		{Title: "Last Seen", Width: 12},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(6),
		table.WithFocused(false),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("12"))
	s.Selected = s.Selected.Foreground(lipgloss.NoColor{}).Bold(false)
	t.SetStyles(s)
	return t
}

func initialModel(connInfo string, statsInterval int, showAll bool, stats *ccsds.Statistics) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         stats,
		apids:         make(map[uint16]*apidState),
		apidTable:     newAPIDTable(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
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

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	case streamEndMsg:
		m.ended = true
		if !endOfStream(msg.err) {
			m.endErr = msg.err
			m.addLogEntry(fmt.Sprintf("READ ERROR: %v", msg.err), true)
		} else {
			m.addLogEntry("End of stream", false)
		}

	case streamMsg:
		ev := msg.event
		if m.observe != nil {
			m.observe(&ev)
		}
		m.recordEvent(ev)
	}

	return m, nil
}

// recordEvent updates the APID table and the event log
func (m *model) recordEvent(ev packetEvent) {
	if ev.decodeErr != nil {
		m.addLogEntry(fmt.Sprintf("DECODE ERROR at offset %d: %v", ev.offset, ev.decodeErr), true)
		return
	}

	p := ev.packet
	st, ok := m.apids[p.APID()]
	if !ok {
		st = &apidState{}
		m.apids[p.APID()] = st
	}
	st.packets++
	st.lastSeq = p.SequenceCount()
	st.variant = p.Variant()
	st.lastSeen = p.Timestamp()
	if sh := p.SecondaryHeader(); sh != nil {
		c := sh.Common()
		st.service = fmt.Sprintf("%d/%d", c.ServiceType, c.ServiceSubtype)
	} else {
		st.service = "-"
	}

	if ev.gap != nil {
		st.gaps++
		m.addLogEntry(ccsds.FormatSequenceGap(*ev.gap), false)
	}
	if len(ev.anomalies) > 0 {
		st.errors++
		for _, a := range ev.anomalies {
			m.addLogEntry(fmt.Sprintf("APID %d: %s", p.APID(), a.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(ccsds.FormatPacketLine(p)+" (valid)", false)
	}
	m.refreshTable()
}

func (m *model) refreshTable() {
	rows := make([]table.Row, 0, len(m.apids))
	for _, apid := range m.stats.APIDs() {
		st, ok := m.apids[apid]
		if !ok {
			continue
		}
		rows = append(rows, table.Row{
			strconv.Itoa(int(apid)),
			strconv.FormatUint(st.packets, 10),
			strconv.Itoa(int(st.lastSeq)),
			strconv.FormatUint(st.gaps, 10),
			strconv.FormatUint(st.errors, 10),
			st.variant.String(),
			st.service,
			st.lastSeen.Format("15:04:05.000"),
		})
	}
	m.apidTable.SetRows(rows)
	m.apidTable.SetHeight(min(len(rows), 10) + 1)
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
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
	s.WriteString(titleStyle.Render("CCSDSPACK - PACKET MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All packets"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	switch {
	case m.endErr != nil:
		s.WriteString(errorStyle.Render("✗ Source failed"))
	case m.ended:
		s.WriteString(warningStyle.Render("■ End of stream"))
	case m.stats.TotalPackets == 0:
		s.WriteString(warningStyle.Render("⏳ Waiting for packets..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Receiving"))
	}
	s.WriteString("\n\n")

	// Statistics
	var validPercent, errorPercent float64
	totalErrors := m.stats.ErrorCount()
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalPackets)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidPackets, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if m.stats.ChecksumErrors > 0 || m.stats.LengthErrors > 0 || m.stats.HeaderErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			statsLabelStyle.Render("Length Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.LengthErrors)),
			statsLabelStyle.Render("Header Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.HeaderErrors)),
		))
	}

	if m.stats.Anomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d)\n",
			statsLabelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Anomalies)),
			headerStyle.Render("template mismatches"), m.stats.TemplateMismatch,
		))
	}

	if m.stats.SequenceGaps > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d)\n",
			statsLabelStyle.Render("Sequence Gaps:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.SequenceGaps)),
			headerStyle.Render("missing packets"), m.stats.MissingPackets,
		))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", m.stats.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// APID table (only shown once packets arrived)
	if len(m.apids) > 0 {
		s.WriteString(statsLabelStyle.Render("APIDs:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(m.apidTable.View()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 15 - m.apidTable.Height()
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
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

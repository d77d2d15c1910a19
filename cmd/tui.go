// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/photonforge/xcorr/pkg/xc"
)

var tuiShowAll bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Live correlator dashboard",
	Long: `Full-screen live view of the capture stream: per-line pulse rates,
coherence bars for every autocorrelation and baseline, read statistics and
an event log.

By default only errors are logged; use --show-all to log every packet.`,
	RunE: runTui,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().BoolVar(&tuiShowAll, "show-all", false, "Log valid packets too (not just errors)")
}

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type tuiModel struct {
	connInfo      string
	device        *xc.Device
	stats         *xc.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	lastPacket    *xc.Packet
	width         int
	height        int
	quitting      bool
	showAll       bool
}

// Messages
type tuiTickMsg time.Time
type packetMsg struct {
	packet *xc.Packet
	err    error
}

func tuiTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tuiTickMsg(t)
	})
}

func initialTuiModel(dev *xc.Device, connInfo string, showAll bool) tuiModel {
	return tuiModel{
		connInfo:      connInfo,
		device:        dev,
		stats:         xc.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
		showAll:       showAll,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		tuiTickCmd(),
		tea.EnterAltScreen,
	)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tuiTickMsg:
		m.stats.CalculateRates()
		return m, tuiTickCmd()

	case packetMsg:
		m.stats.Update(msg.err)
		if msg.err != nil {
			// timeouts and empty retry budgets are routine on a slow device
			if !errors.Is(msg.err, xc.ErrTimeout) && !errors.Is(msg.err, xc.ErrNoData) {
				m.addLogEntry(fmt.Sprintf("READ ERROR: %v", msg.err), true)
			}
		} else if msg.packet != nil {
			m.lastPacket = msg.packet
			if m.showAll {
				m.addLogEntry(fmt.Sprintf("packet: %d lines, %d baselines",
					msg.packet.NLines, msg.packet.NBaselines), false)
			}
		}
	}

	return m, nil
}

func (m *tuiModel) addLogEntry(message string, isError bool) {
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

// coherenceBar renders a coherence value in [0, 1] as a fixed-width bar.
func coherenceBar(coherence float64, width int) string {
	if coherence < 0 {
		coherence = 0
	}
	if coherence > 1 {
		coherence = 1
	}
	filled := int(coherence*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// meanCoherence averages a lag run.
func meanCoherence(run []xc.Correlation) float64 {
	if len(run) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range run {
		sum += c.Coherence
	}
	return sum / float64(len(run))
}

func (m tuiModel) View() string {
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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("XCORR - LIVE CAPTURE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %d lines, %d baselines @ %d Hz | Press 'q' to quit, 'r' to reset stats",
		m.connInfo, m.device.NLines(), m.device.NBaselines(), m.device.Frequency())))
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Reads:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidPackets, validPercent)),
		labelStyle.Render("Timeouts:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Timeouts)),
	))
	if m.stats.FrameErrors > 0 || m.stats.ParseErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Frame Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.FrameErrors)),
			labelStyle.Render("Parse Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ParseErrors)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Packet Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pkts/s", m.stats.PacketRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest packet (only shown once one decoded)
	if m.lastPacket != nil {
		s.WriteString(labelStyle.Render("Latest Packet:"))
		s.WriteString("\n")

		packetContent := strings.Builder{}
		for x, counts := range m.lastPacket.Counts {
			mean := meanCoherence(m.lastPacket.Autocorrelations[x].Correlations)
			packetContent.WriteString(fmt.Sprintf("%s %s %s %s\n",
				labelStyle.Render(fmt.Sprintf("Line %d:", x)),
				valueStyle.Render(fmt.Sprintf("%8d pulses", counts)),
				coherenceBar(mean, 24),
				headerStyle.Render(fmt.Sprintf("%.4f", mean)),
			))
		}

		idx := 0
		for x := 0; x < m.lastPacket.NLines; x++ {
			for y := x + 1; y < m.lastPacket.NLines; y++ {
				if idx >= len(m.lastPacket.Crosscorrelations) {
					break
				}
				mean := meanCoherence(m.lastPacket.Crosscorrelations[idx].Correlations)
				packetContent.WriteString(fmt.Sprintf("%s %s %s %s\n",
					labelStyle.Render(fmt.Sprintf("Base %d-%d:", x, y)),
					valueStyle.Render("       baseline"),
					coherenceBar(mean, 24),
					headerStyle.Render(fmt.Sprintf("%.4f", mean)),
				))
				idx++
			}
		}

		s.WriteString(boxStyle.Render(packetContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 16 // Reserve space for header, stats and packet
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

func runTui(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	if err := dev.EnableCapture(true); err != nil {
		return err
	}
	defer dev.EnableCapture(false)

	p := tea.NewProgram(initialTuiModel(dev, connInfo, tuiShowAll))

	// Capture reader goroutine: each iteration decodes into a fresh packet so
	// the model never shares memory with an in-flight read.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			packet := dev.NewPacket()
			err := dev.GetPacket(packet)
			if err != nil {
				p.Send(packetMsg{packet: nil, err: err})
				continue
			}
			p.Send(packetMsg{packet: packet, err: nil})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/photonforge/xcorr/pkg/xc"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for line-level device control",
	Long: `Drive the correlator's per-line controls from an interactive terminal UI:
LED masks, test-signal injection, supply voltage and the correlation clock
divider.

Arrow keys select a line. Per line: 1-4 toggle LED bits, t toggles the test
signal. Global: +/- adjust the selected line's voltage, [ and ] adjust the
clock divider.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// lineState mirrors the session command state for display.
type lineState struct {
	leds    byte
	test    xc.TestFlag
	voltage byte
}

type controlModel struct {
	connInfo string
	device   *xc.Device
	lines    []lineState
	divider  int
	selected int
	lastErr  error
	quitting bool
}

// controlDoneMsg reports the outcome of one device command.
type controlDoneMsg struct {
	err error
}

func initialControlModel(dev *xc.Device, connInfo string) controlModel {
	return controlModel{
		connInfo: connInfo,
		device:   dev,
		lines:    make([]lineState, dev.NLines()),
		divider:  dev.FrequencyDivider(),
	}
}

// deviceCmd runs one blocking device command off the UI goroutine.
func deviceCmd(f func() error) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{err: f()}
	}
}

func (m controlModel) Init() tea.Cmd {
	return nil
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		dev := m.device
		line := m.selected

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.lines)-1 {
				m.selected++
			}

		case "1", "2", "3", "4":
			bit := byte(1) << (msg.String()[0] - '1')
			m.lines[line].leds ^= bit
			leds := m.lines[line].leds
			return m, deviceCmd(func() error { return dev.SetLeds(line, leds) })

		case "t":
			if m.lines[line].test&xc.TestSignal != 0 {
				m.lines[line].test &^= xc.TestSignal
				return m, deviceCmd(func() error { return dev.ClearTest(line, xc.TestSignal) })
			}
			m.lines[line].test |= xc.TestSignal
			return m, deviceCmd(func() error { return dev.SetTest(line, xc.TestSignal) })

		case "+", "=":
			if m.lines[line].voltage < 0xFF {
				m.lines[line].voltage++
			}
			v := m.lines[line].voltage
			return m, deviceCmd(func() error { return dev.SetVoltage(line, v) })

		case "-":
			if m.lines[line].voltage > 0 {
				m.lines[line].voltage--
			}
			v := m.lines[line].voltage
			return m, deviceCmd(func() error { return dev.SetVoltage(line, v) })

		case "]":
			if m.divider < 0xF {
				m.divider++
			}
			div := byte(m.divider)
			return m, deviceCmd(func() error { return dev.SetFrequencyDivider(div) })

		case "[":
			if m.divider > 0 {
				m.divider--
			}
			div := byte(m.divider)
			return m, deviceCmd(func() error { return dev.SetFrequencyDivider(div) })
		}

	case controlDoneMsg:
		m.lastErr = msg.err
	}

	return m, nil
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	selectedStyle := lipgloss.NewStyle().
		Bold(true).
		Background(lipgloss.Color("237"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("XCORR - DEVICE CONTROL"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | divider 2^%d | 1-4: leds  t: test  +/-: voltage  [/]: divider  q: quit",
		m.connInfo, m.divider)))
	s.WriteString("\n\n")

	content := strings.Builder{}
	for i, line := range m.lines {
		row := fmt.Sprintf("%s  leds %04b  test %s  voltage %3d",
			labelStyle.Render(fmt.Sprintf("Line %d", i)),
			line.leds,
			func() string {
				if line.test&xc.TestSignal != 0 {
					return valueStyle.Render("on ")
				}
				return headerStyle.Render("off")
			}(),
			line.voltage,
		)
		if i == m.selected {
			row = selectedStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		content.WriteString(row)
		content.WriteString("\n")
	}

	s.WriteString(boxStyle.Render(content.String()))
	s.WriteString("\n")

	if m.lastErr != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("command failed: %v", m.lastErr)))
		s.WriteString("\n")
	}

	return s.String()
}

func runControl(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	if _, err := tea.NewProgram(initialControlModel(dev, connInfo), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/photonforge/xcorr/pkg/xc"
)

var (
	scanLine   int
	scanLine2  int
	scanStart  int
	scanStart2 int
	scanLength int
	scanCross  bool
	scanOutput string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a delay scan and print the correlation profile",
	Long: `Sweep a line's autocorrelation lag (or a baseline's crosscorrelation lag
with --cross) across the delay buffer, one packet per step, and print the
captured coherence profile as tab-separated rows.

The scan runs for minutes at large lengths; press q or Ctrl+C to stop early
and keep the partial profile.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanLine, "line", 0, "Line to sweep")
	scanCmd.Flags().IntVar(&scanLine2, "line2", 1, "Second line of the baseline (--cross only)")
	scanCmd.Flags().IntVar(&scanStart, "start", 0, "Starting lag in clock cycles")
	scanCmd.Flags().IntVar(&scanStart2, "start2", 0, "Second line's starting lag (--cross only)")
	scanCmd.Flags().IntVar(&scanLength, "length", 64, "Number of scan steps")
	scanCmd.Flags().BoolVar(&scanCross, "cross", false, "Crosscorrelation scan instead of autocorrelation")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write the profile to a file instead of stdout")
}

// scan TUI: a progress bar over the shared ScanProgress, polled on a tick.
type scanModel struct {
	bar      progress.Model
	prog     *xc.ScanProgress
	scanDone chan struct{}
	quitting bool
}

type scanTickMsg time.Time
type scanDoneMsg struct{}

func scanTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return scanTickMsg(t)
	})
}

func waitScanCmd(done chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return scanDoneMsg{}
	}
}

func (m scanModel) Init() tea.Cmd {
	return tea.Batch(scanTickCmd(), waitScanCmd(m.scanDone))
}

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.prog.Interrupt()
			return m, nil // quit once the scan engine acknowledges
		}

	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 8
		if m.bar.Width > 72 {
			m.bar.Width = 72
		}

	case scanTickMsg:
		return m, scanTickCmd()

	case scanDoneMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m scanModel) View() string {
	if m.quitting {
		return "Stopping scan...\n"
	}
	return fmt.Sprintf("\n  %s %.1f%%\n\n  press q to stop\n",
		m.bar.ViewAs(m.prog.Percent()/100.0), m.prog.Percent())
}

func runScan(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	if scanCross && !dev.HasCrosscorrelator() {
		return fmt.Errorf("device has no crosscorrelator")
	}

	fmt.Printf("Xcorr - Delay Scan\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if scanCross {
		fmt.Printf("Baseline %d-%d, %d steps\n", scanLine, scanLine2, scanLength)
	} else {
		fmt.Printf("Line %d, %d steps from lag %d\n", scanLine, scanLength, scanStart)
	}

	var prog xc.ScanProgress
	done := make(chan struct{})

	var samples []xc.Sample
	var completed int
	var scanErr error
	go func() {
		defer close(done)
		if scanCross {
			samples, completed, scanErr = dev.ScanCrosscorrelations(
				scanLine, scanLine2, scanStart, scanStart2, scanLength, &prog)
		} else {
			samples, completed, scanErr = dev.ScanAutocorrelations(
				scanLine, scanStart, scanLength, &prog)
		}
	}()

	m := scanModel{
		bar:      progress.New(progress.WithDefaultGradient()),
		prog:     &prog,
		scanDone: done,
	}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		prog.Interrupt()
		<-done
		return fmt.Errorf("TUI error: %v", err)
	}
	<-done

	if scanErr != nil {
		return fmt.Errorf("scan failed after %d steps: %v", completed, scanErr)
	}

	out := xc.FormatSamples(samples[:completed])
	if scanOutput != "" {
		if err := os.WriteFile(scanOutput, []byte(out), 0644); err != nil {
			return err
		}
		fmt.Printf("Wrote %d steps to %s\n", completed, scanOutput)
		return nil
	}
	fmt.Print(out)
	return nil
}

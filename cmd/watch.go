// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/stroomlab/circlet/pkg/plugwise"
)

var watchCmd = &cobra.Command{
	Use:   "watch <device>",
	Short: "Live power dashboard",
	Long: `Watch one Circle's power draw in a live terminal dashboard.

The dashboard polls the device once a second, graphs the eight-second
wattage, and shows transport statistics so link trouble is visible next
to the readings it distorts.

Keys:
  s    toggle the relay
  q    quit`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	stick, circle, cleanup, err := openCircle(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	m := newWatchModel(stick, circle)
	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

// One reading per poll; the graph keeps the last maxReadings.
const maxReadings = 120

type reading struct {
	at    time.Time
	usage plugwise.PowerUsage
}

// Messages
type pollTickMsg struct{}
type powerMsg struct {
	usage plugwise.PowerUsage
	err   error
}
type relayMsg struct {
	on  bool
	err error
}

type watchModel struct {
	stick  *plugwise.Stick
	circle *plugwise.Circle

	spin       spinner.Model
	readings   []reading
	lastErr    error
	relayOn    bool
	relayKnown bool
	switching  bool
	width      int
	height     int
	quitting   bool
}

func newWatchModel(stick *plugwise.Stick, circle *plugwise.Circle) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	return watchModel{
		stick:  stick,
		circle: circle,
		spin:   s,
		width:  80,
		height: 24,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		m.pollCmd(),
		m.relayQueryCmd(),
		tea.EnterAltScreen,
	)
}

func (m watchModel) pollCmd() tea.Cmd {
	circle := m.circle
	return func() tea.Msg {
		usage, err := circle.Power(context.Background())
		return powerMsg{usage: usage, err: err}
	}
}

func (m watchModel) relayQueryCmd() tea.Cmd {
	circle := m.circle
	return func() tea.Msg {
		on, err := circle.RelayOn(context.Background())
		return relayMsg{on: on, err: err}
	}
}

func (m watchModel) relayToggleCmd() tea.Cmd {
	circle := m.circle
	target := !m.relayOn
	return func() tea.Msg {
		var err error
		if target {
			err = circle.SwitchOn(context.Background())
		} else {
			err = circle.SwitchOff(context.Background())
		}
		if err != nil {
			return relayMsg{on: !target, err: err}
		}
		return relayMsg{on: target}
	}
}

func nextPollCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			if m.relayKnown && !m.switching {
				m.switching = true
				return m, m.relayToggleCmd()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pollTickMsg:
		return m, m.pollCmd()

	case powerMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
			m.readings = append(m.readings, reading{at: time.Now(), usage: msg.usage})
			if len(m.readings) > maxReadings {
				m.readings = m.readings[len(m.readings)-maxReadings:]
			}
		}
		return m, nextPollCmd()

	case relayMsg:
		m.switching = false
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.relayOn = msg.on
			m.relayKnown = true
		}
	}

	return m, nil
}

// bar renders one wattage as a proportional block run.
func bar(watts, max float64, width int) string {
	if max <= 0 || width <= 0 {
		return ""
	}
	n := int(watts / max * float64(width))
	if n > width {
		n = width
	}
	if n < 1 && watts > 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

func (m watchModel) View() string {
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

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("CIRCLET - LIVE POWER"))
	s.WriteString("\n")

	relay := "unknown"
	if m.relayKnown {
		relay = "off"
		if m.relayOn {
			relay = "on"
		}
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("Device: %s | Relay: %s | Press 's' to switch, 'q' to quit",
		m.circle.MAC(), relay)))
	s.WriteString("\n\n")

	if len(m.readings) == 0 {
		s.WriteString(m.spin.View())
		s.WriteString(headerStyle.Render(" Waiting for first reading..."))
		s.WriteString("\n\n")
	} else {
		latest := m.readings[len(m.readings)-1].usage

		current := strings.Builder{}
		current.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Power 1s:"), valueStyle.Render(fmt.Sprintf("%.1f W", latest.Watts1s)),
			labelStyle.Render("Power 8s:"), valueStyle.Render(fmt.Sprintf("%.1f W", latest.Watts8s)),
			labelStyle.Render("This hour:"), valueStyle.Render(fmt.Sprintf("%.4f kWh", latest.KWhHour)),
		))
		if latest.Saturated {
			current.WriteString(errorStyle.Render("SATURATED: load exceeds metering range"))
			current.WriteString("\n")
		}

		// Graph of the eight-second wattage, newest at the bottom.
		var max float64
		for _, r := range m.readings {
			if r.usage.Watts8s > max {
				max = r.usage.Watts8s
			}
		}
		graphWidth := m.width - 30
		if graphWidth < 10 {
			graphWidth = 10
		}
		graphRows := m.height - 14
		if graphRows < 4 {
			graphRows = 4
		}
		start := len(m.readings) - graphRows
		if start < 0 {
			start = 0
		}
		for _, r := range m.readings[start:] {
			current.WriteString(fmt.Sprintf("%s %7.1f W %s\n",
				headerStyle.Render(r.at.Format("15:04:05")),
				r.usage.Watts8s,
				valueStyle.Render(bar(r.usage.Watts8s, max, graphWidth)),
			))
		}

		s.WriteString(boxStyle.Render(current.String()))
		s.WriteString("\n\n")
	}

	if m.lastErr != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %v", m.lastErr)))
		s.WriteString("\n\n")
	}

	stats := m.stick.Stats()
	s.WriteString(headerStyle.Render(fmt.Sprintf(
		"frames %d | crc errors %d | noise %d | unsolicited %d | retries %d | timeouts %d",
		stats.FramesDecoded, stats.CRCErrors, stats.NoiseBytes,
		stats.Unsolicited, stats.Retries, stats.Timeouts)))
	s.WriteString("\n")

	return s.String()
}

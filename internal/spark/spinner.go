package spark

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type probeFinishedMsg struct{}

type probeModel struct {
	spinner  spinner.Model
	quitting bool
}

func newProbeModel() probeModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#e25a1c"))

	return probeModel{
		spinner: s,
	}
}

func (m probeModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m probeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case probeFinishedMsg:
		m.quitting = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m probeModel) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf(" %s Detecting PySpark...\n", m.spinner.View())
}

// ProbeWithSpinner runs p.Probe while a spinner animates on the terminal
func ProbeWithSpinner(ctx context.Context, p Prober) (string, error) {
	var (
		version  string
		probeErr error
	)

	prog := tea.NewProgram(newProbeModel())
	done := make(chan struct{})

	go func() {
		time.Sleep(50 * time.Millisecond) // Give UI time to start
		version, probeErr = p.Probe(ctx)
		close(done)
		prog.Send(probeFinishedMsg{})
	}()

	_, err := prog.Run()
	<-done
	if err != nil {
		return "", err
	}

	return version, probeErr
}

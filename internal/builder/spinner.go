package builder

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type spinnerFinishedMsg struct {
	err error
}

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	started  time.Time
	quitting bool
	err      error
}

func newSpinnerModel(message string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#e25a1c"))

	return spinnerModel{
		spinner: s,
		message: message,
		started: time.Now(),
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinnerFinishedMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	elapsed := time.Since(m.started).Round(time.Second)
	return fmt.Sprintf("\n %s %s %s\n\n", m.spinner.View(), m.message, lipgloss.NewStyle().Faint(true).Render(elapsed.String()))
}

// WithSpinner runs fn while a spinner animates and returns fn's error.
// Interrupting the spinner does not cancel fn; cancel its context instead.
func WithSpinner(message string, fn func() error) error {
	p := tea.NewProgram(newSpinnerModel(message))
	done := make(chan error, 1)

	go func() {
		time.Sleep(100 * time.Millisecond) // Give UI time to start
		err := fn()
		done <- err
		p.Send(spinnerFinishedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		<-done
		return err
	}

	return <-done
}
